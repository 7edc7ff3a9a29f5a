package domain

import "time"

// AuditEntry registra una resolución (o intento) hecha por un admin o por el barrido.
type AuditEntry struct {
	ID         string
	GroupID    int64
	OperatorID int64
	Action     string // approve | reject | approve_all | sweep | reset_group | reset_plugin
	Targets    []int64
	Approved   int
	Rejected   int
	Failures   []int64
	Reason     string
	CreatedAt  time.Time
}
