// metrics.go — метрики прикладных операций.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// operationsTotal — количество прикладных операций (upload, delete)
// по результатам (success, error).
var operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fd_operations_total",
	Help: "Общее количество прикладных операций по результатам",
}, []string{"operation", "result"})
