package domain

import "time"

// JoinRequest es una solicitud de ingreso pendiente. Es inmutable: si el mismo usuario vuelve
// a pedir entrar al mismo grupo se crea una nueva y la anterior queda invalidada.
type JoinRequest struct {
	GroupID   int64     `json:"groupId"`
	UserID    int64     `json:"userId"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	Token     string    `json:"token"` // "flag" del gateway, necesario para aprobar/rechazar
}

// Age devuelve la antigüedad de la solicitud respecto a now.
func (r JoinRequest) Age(now time.Time) time.Duration { return now.Sub(r.CreatedAt) }

type Counter int

const (
	JoinApprove Counter = iota
	JoinInvite
	LeaveActive
	LeaveKick
	RequestsAdd
	RequestsApproved
	RequestsRejected
)

var counterPaths = [...]string{
	JoinApprove:      "join.approve",
	JoinInvite:       "join.invite",
	LeaveActive:      "leave.active",
	LeaveKick:        "leave.kick",
	RequestsAdd:      "requests.add",
	RequestsApproved: "requests.approved",
	RequestsRejected: "requests.rejected",
}

func (c Counter) String() string {
	if c < 0 || int(c) >= len(counterPaths) {
		return "unknown"
	}
	return counterPaths[c]
}

type JoinCounters struct {
	Approve int64 `json:"approve"`
	Invite  int64 `json:"invite"`
}

type LeaveCounters struct {
	Active int64 `json:"active"`
	Kick   int64 `json:"kick"`
}

type RequestCounters struct {
	Add      int64 `json:"add"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
}

// Counters es el set de contadores de un grupo (o el global).
type Counters struct {
	Join     JoinCounters    `json:"join"`
	Leave    LeaveCounters   `json:"leave"`
	Requests RequestCounters `json:"requests"`
}

func (c *Counters) field(k Counter) *int64 {
	switch k {
	case JoinApprove:
		return &c.Join.Approve
	case JoinInvite:
		return &c.Join.Invite
	case LeaveActive:
		return &c.Leave.Active
	case LeaveKick:
		return &c.Leave.Kick
	case RequestsAdd:
		return &c.Requests.Add
	case RequestsApproved:
		return &c.Requests.Approved
	case RequestsRejected:
		return &c.Requests.Rejected
	}
	return nil
}

// Inc suma uno al contador k. Contadores desconocidos se ignoran.
func (c *Counters) Inc(k Counter) {
	if p := c.field(k); p != nil {
		*p++
	}
}

func (c Counters) Get(k Counter) int64 {
	if p := c.field(k); p != nil {
		return *p
	}
	return 0
}

// Joined = entradas totales (aprobadas + invitadas).
func (c Counters) Joined() int64 { return c.Join.Approve + c.Join.Invite }

// Left = salidas totales (voluntarias + expulsiones).
func (c Counters) Left() int64 { return c.Leave.Active + c.Leave.Kick }

// NetGrowth se calcula al leer; nunca se persiste.
func (c Counters) NetGrowth() int64 { return c.Joined() - c.Left() }

// ApprovalRate devuelve aprobadas/(aprobadas+rechazadas) y false si no hubo resoluciones.
func (c Counters) ApprovalRate() (float64, bool) {
	total := c.Requests.Approved + c.Requests.Rejected
	if total == 0 {
		return 0, false
	}
	return float64(c.Requests.Approved) / float64(total), true
}

type StatsDocument struct {
	Global Counters           `json:"global"`
	Groups map[int64]Counters `json:"groups"`
}

const DocumentVersion = 1

// PersistedDocument es todo lo que sobrevive a un reinicio. El store no conoce su forma,
// sólo guarda/lee el JSON.
type PersistedDocument struct {
	Version         int                     `json:"version"`
	SavedAt         time.Time               `json:"savedAt"`
	Stats           StatsDocument           `json:"stats"`
	PendingRequests map[int64][]JoinRequest `json:"pendingRequests"`
}

// NewDocument devuelve un documento vacío listo para serializar.
func NewDocument() PersistedDocument {
	return PersistedDocument{
		Version:         DocumentVersion,
		Stats:           StatsDocument{Groups: map[int64]Counters{}},
		PendingRequests: map[int64][]JoinRequest{},
	}
}
