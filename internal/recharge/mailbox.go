package recharge

import (
	"sync"

	"chat_billing/internal/models"
)

// Mailbox holds per-account expiration notifications until the account
// polls for them. It is deliberately process-local and in-memory:
// entries do not survive a restart, which is an accepted trade-off, not
// a defect. Only the sweeper deposits into it.
type Mailbox struct {
	mu      sync.Mutex
	entries map[string][]*models.RechargeOrder
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		entries: make(map[string][]*models.RechargeOrder),
	}
}

// Deposit queues an expired-order snapshot for its account.
func (m *Mailbox) Deposit(order *models.RechargeOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[order.Username] = append(m.entries[order.Username], order)
}

// PollAndClear atomically returns and removes everything queued for the
// account, giving at-most-once delivery per expiration event.
func (m *Mailbox) PollAndClear(username string) []*models.RechargeOrder {
	m.mu.Lock()
	defer m.mu.Unlock()

	orders := m.entries[username]
	delete(m.entries, username)
	return orders
}

// Len reports how many notifications are queued across all accounts.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, orders := range m.entries {
		total += len(orders)
	}
	return total
}
