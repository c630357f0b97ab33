// Package chatsync сводит локально показанные сообщения с подтверждёнными сервером.
package chatsync

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ninerxsolution/trading-market/internal/models"
)

const (
	// DefaultMatchWindow - допустимое расхождение времени между оптимистичной
	// записью и её эхом от сервера.
	DefaultMatchWindow = 10 * time.Second

	tempIDPrefix = "temp-"
)

// Entry - строка переписки на экране.
type Entry struct {
	ID         string
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Message    string
	OrderID    *uuid.UUID
	Timestamp  time.Time
	// Pending - сообщение отправлено, но эхо от сервера ещё не пришло.
	Pending bool
}

// IsTemporary - запись с временным идентификатором.
func (e Entry) IsTemporary() bool {
	return strings.HasPrefix(e.ID, tempIDPrefix)
}

func entryFromMessage(m models.ChatMessage) Entry {
	return Entry{
		ID:         m.ID.String(),
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Message:    m.Message,
		OrderID:    m.OrderID,
		Timestamp:  m.Timestamp,
	}
}

// Reconciler хранит отображаемую переписку пользователя self.
//
// Эхо собственного сообщения сопоставляется эвристически: тот же отправитель,
// тот же текст, время в пределах окна. Из подходящих берётся самая старая
// ожидающая запись, поэтому каждое эхо поглощает ровно одну запись.
type Reconciler struct {
	mu      sync.Mutex
	self    uuid.UUID
	window  time.Duration
	entries []Entry
	known   map[string]struct{}
}

func NewReconciler(self uuid.UUID, window time.Duration) *Reconciler {
	if window <= 0 {
		window = DefaultMatchWindow
	}
	return &Reconciler{
		self:   self,
		window: window,
		known:  make(map[string]struct{}),
	}
}

// AddOptimistic показывает сообщение сразу после отправки.
func (r *Reconciler) AddOptimistic(receiverID uuid.UUID, text string, orderID *uuid.UUID, now time.Time) Entry {
	e := Entry{
		ID:         tempIDPrefix + uuid.NewString(),
		SenderID:   r.self,
		ReceiverID: receiverID,
		Message:    strings.TrimSpace(text),
		OrderID:    orderID,
		Timestamp:  now,
		Pending:    true,
	}

	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
	return e
}

// ApplyConfirmed применяет подтверждённое сервером сообщение. Возвращает false,
// если сообщение с таким id уже показано.
func (r *Reconciler) ApplyConfirmed(msg models.ChatMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyLocked(msg)
}

func (r *Reconciler) applyLocked(msg models.ChatMessage) bool {
	id := msg.ID.String()
	if _, ok := r.known[id]; ok {
		return false
	}
	r.known[id] = struct{}{}

	confirmed := entryFromMessage(msg)
	if msg.SenderID == r.self {
		if i := r.matchPending(msg); i >= 0 {
			r.entries[i] = confirmed
			return true
		}
	}
	r.entries = append(r.entries, confirmed)
	return true
}

// matchPending ищет самую старую ожидающую запись для эха msg.
func (r *Reconciler) matchPending(msg models.ChatMessage) int {
	for i, e := range r.entries {
		if !e.Pending || e.SenderID != msg.SenderID || e.ReceiverID != msg.ReceiverID {
			continue
		}
		if e.Message != strings.TrimSpace(msg.Message) {
			continue
		}
		if absDuration(msg.Timestamp.Sub(e.Timestamp)) <= r.window {
			return i
		}
	}
	return -1
}

// LoadHistory вливает полную выборку переписки (после перезагрузки или
// переподключения). Дубликаты по id отбрасываются, ожидающие записи остаются,
// пока их не поглотит эхо.
func (r *Reconciler) LoadHistory(msgs []models.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range msgs {
		r.applyLocked(m)
	}
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].Timestamp.Before(r.entries[j].Timestamp)
	})
}

// Entries возвращает копию отображаемого списка.
func (r *Reconciler) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// PendingCount - число сообщений без эха.
func (r *Reconciler) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Pending {
			n++
		}
	}
	return n
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
