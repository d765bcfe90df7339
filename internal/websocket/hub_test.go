package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient is a Subscriber that records what it is sent
type mockClient struct {
	id       string
	ownerID  uuid.UUID
	sub      Subscription
	sendErr  error
	messages [][]byte
	mu       sync.Mutex
	closed   bool
}

func newMockClient(id string, ownerID uuid.UUID) *mockClient {
	return &mockClient{id: id, ownerID: ownerID}
}

func (m *mockClient) ID() string         { return m.id }
func (m *mockClient) OwnerID() uuid.UUID { return m.ownerID }
func (m *mockClient) Wants(e Event) bool { return m.sub.Matches(e) }

func (m *mockClient) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClientClosed
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	m.messages = append(m.messages, data)
	return nil
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockClient) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.messages))
	for _, data := range m.messages {
		var decoded struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(data, &decoded)
		types = append(types, decoded.Type)
	}
	return types
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	ownerA, ownerB := uuid.New(), uuid.New()

	client1 := newMockClient("client-1", ownerA)
	client2 := newMockClient("client-2", ownerA)
	client3 := newMockClient("client-3", ownerB)

	hub.Register(client1)
	hub.Register(client2)
	hub.Register(client3)

	assert.Equal(t, 2, hub.ClientCount(ownerA))
	assert.Equal(t, 1, hub.ClientCount(ownerB))
	assert.Equal(t, 0, hub.ClientCount(uuid.New()))
	assert.Equal(t, 3, hub.TotalClientCount())

	hub.Unregister(client1)
	assert.Equal(t, 1, hub.ClientCount(ownerA))

	hub.Unregister(client2)
	hub.Unregister(client3)
	assert.Equal(t, 0, hub.TotalClientCount())
}

func TestHub_Broadcast_OwnerIsolation(t *testing.T) {
	hub := NewHub()
	ownerA, ownerB := uuid.New(), uuid.New()

	clientA1 := newMockClient("client-a1", ownerA)
	clientA2 := newMockClient("client-a2", ownerA)
	clientB := newMockClient("client-b", ownerB)
	hub.Register(clientA1)
	hub.Register(clientA2)
	hub.Register(clientB)

	hub.Broadcast(ownerA, PeriodClosed(&domain.Period{ID: uuid.New(), OwnerID: ownerA}))

	assert.Equal(t, []string{"period.closed"}, clientA1.Types())
	assert.Equal(t, []string{"period.closed"}, clientA2.Types())
	assert.Empty(t, clientB.Types(), "other owners must not receive the event")
}

func TestHub_Broadcast_AppliesSubscriptions(t *testing.T) {
	hub := NewHub()
	owner := uuid.New()
	period := &domain.Period{ID: uuid.New(), OwnerID: owner}
	otherPeriod := &domain.Period{ID: uuid.New(), OwnerID: owner}

	everything := newMockClient("all", owner)
	expensesOnly := newMockClient("expenses", owner)
	expensesOnly.sub = Subscription{Entities: []EntityType{EntityTypeExpense}}
	onePeriod := newMockClient("period", owner)
	onePeriod.sub = Subscription{PeriodID: &period.ID}
	for _, c := range []*mockClient{everything, expensesOnly, onePeriod} {
		hub.Register(c)
	}

	hub.Broadcast(owner, PeriodUpdated(period))
	hub.Broadcast(owner, ExpenseCreated(&domain.Expense{ID: uuid.New(), PeriodID: period.ID}))
	hub.Broadcast(owner, ExpenseCreated(&domain.Expense{ID: uuid.New(), PeriodID: otherPeriod.ID}))
	hub.Broadcast(owner, TemplateCreated(&domain.ExpenseTemplate{ID: uuid.New()}))

	assert.Equal(t, []string{"period.updated", "expense.created", "expense.created", "template.created"}, everything.Types())
	assert.Equal(t, []string{"expense.created", "expense.created"}, expensesOnly.Types())
	assert.Equal(t, []string{"period.updated", "expense.created"}, onePeriod.Types())
}

func TestHub_Broadcast_DropsSlowClient(t *testing.T) {
	hub := NewHub()
	owner := uuid.New()

	healthy := newMockClient("healthy", owner)
	slow := newMockClient("slow", owner)
	slow.sendErr = ErrSlowClient
	hub.Register(healthy)
	hub.Register(slow)

	hub.Broadcast(owner, PeriodCreated(&domain.Period{ID: uuid.New()}))

	assert.True(t, slow.IsClosed())
	assert.False(t, healthy.IsClosed())
	assert.Equal(t, 1, hub.ClientCount(owner))
	assert.Len(t, healthy.Types(), 1)
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()
	owners := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()}

	var wg sync.WaitGroup
	clientCount := 50

	clients := make([]*mockClient, clientCount)
	for i := 0; i < clientCount; i++ {
		clients[i] = newMockClient(fmt.Sprintf("client-%d", i), owners[i%len(owners)])
	}

	for i := 0; i < clientCount; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			hub.Register(clients[idx])
		}(i)
	}
	wg.Wait()

	assert.Equal(t, clientCount, hub.TotalClientCount())

	for i := 0; i < clientCount; i++ {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			hub.Broadcast(owners[idx%len(owners)], ExpenseCreated(&domain.Expense{ID: uuid.New(), PeriodID: uuid.New()}))
		}(i)
		go func(idx int) {
			defer wg.Done()
			hub.Unregister(clients[idx])
		}(i)
	}
	wg.Wait()

	for _, owner := range owners {
		assert.Equal(t, 0, hub.ClientCount(owner))
	}
}

func TestHub_UnregisterNonexistent(t *testing.T) {
	hub := NewHub()

	require.NotPanics(t, func() {
		hub.Unregister(newMockClient("client-1", uuid.New()))
	})
}

func TestHub_BroadcastToOwnerWithoutClients(t *testing.T) {
	hub := NewHub()

	require.NotPanics(t, func() {
		hub.Broadcast(uuid.New(), PeriodCreated(&domain.Period{ID: uuid.New()}))
	})
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub()
	c1 := newMockClient("c1", uuid.New())
	c2 := newMockClient("c2", uuid.New())
	hub.Register(c1)
	hub.Register(c2)

	hub.CloseAll()

	assert.True(t, c1.IsClosed())
	assert.True(t, c2.IsClosed())
	assert.Equal(t, 0, hub.TotalClientCount())
}
