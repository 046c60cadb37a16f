package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	d "github.com/fjod/go_checkout/checkout-service/domain"
	r "github.com/fjod/go_checkout/checkout-service/internal/repository"
)

// invokeCall captures one dispatched operation with its payload as JSON.
type invokeCall struct {
	Op      d.Operation
	Payload map[string]any
}

// MockInvoker implements Invoker for testing. Responses are keyed by operation.
type MockInvoker struct {
	mu        sync.Mutex
	Responses map[d.Operation]string
	Errors    map[d.Operation]error
	Calls     []invokeCall
}

func newMockInvoker() *MockInvoker {
	return &MockInvoker{
		Responses: map[d.Operation]string{},
		Errors:    map[d.Operation]error{},
	}
}

func (m *MockInvoker) Invoke(_ context.Context, op d.Operation, payload any) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var captured map[string]any
	raw, _ := json.Marshal(payload)
	_ = json.Unmarshal(raw, &captured)
	m.Calls = append(m.Calls, invokeCall{Op: op, Payload: captured})

	if err := m.Errors[op]; err != nil {
		return nil, err
	}
	body, ok := m.Responses[op]
	if !ok {
		return nil, errors.New("no scripted response")
	}
	return []byte(body), nil
}

func (m *MockInvoker) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockInvoker) Last() invokeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[len(m.Calls)-1]
}

// MockAttemptStore implements r.AttemptStore in memory and enforces the
// status transition table like the Postgres repository does.
type MockAttemptStore struct {
	mu            sync.Mutex
	attempts      map[string]*d.CheckoutAttempt
	byKey         map[string]string
	Transitions   []r.AttemptUpdate
	LookupErr     error
	CreateErr     error
	TransitionErr error
}

func newMockAttemptStore() *MockAttemptStore {
	return &MockAttemptStore{
		attempts: map[string]*d.CheckoutAttempt{},
		byKey:    map[string]string{},
	}
}

// seed stores a copy of a as is, bypassing the transition table.
func (m *MockAttemptStore) seed(a *d.CheckoutAttempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.attempts[a.ID] = &cp
	m.byKey[a.IdempotencyKey] = a.ID
}

func (m *MockAttemptStore) stored(id string) *d.CheckoutAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func (m *MockAttemptStore) CreateAttempt(_ context.Context, attempt *d.CheckoutAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, ok := m.byKey[attempt.IdempotencyKey]; ok {
		return r.ErrDuplicateIdempotencyKey
	}
	attempt.Status = d.CheckoutStatusPending
	cp := *attempt
	m.attempts[attempt.ID] = &cp
	m.byKey[attempt.IdempotencyKey] = attempt.ID
	return nil
}

func (m *MockAttemptStore) GetAttempt(_ context.Context, id string) (*d.CheckoutAttempt, error) {
	a := m.stored(id)
	if a == nil {
		return nil, r.ErrAttemptNotFound
	}
	return a, nil
}

func (m *MockAttemptStore) GetAttemptByIdempotencyKey(_ context.Context, key string) (*d.CheckoutAttempt, error) {
	m.mu.Lock()
	if m.LookupErr != nil {
		m.mu.Unlock()
		return nil, m.LookupErr
	}
	id, ok := m.byKey[key]
	m.mu.Unlock()
	if !ok {
		return nil, r.ErrIdempotencyKeyNotFound
	}
	return m.stored(id), nil
}

func (m *MockAttemptStore) TransitionAttempt(_ context.Context, id string, upd r.AttemptUpdate) (*d.CheckoutAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transitions = append(m.Transitions, upd)
	if m.TransitionErr != nil {
		return nil, m.TransitionErr
	}
	a, ok := m.attempts[id]
	if !ok {
		return nil, r.ErrAttemptNotFound
	}
	if !d.CanTransitionTo(a.Status, upd.Status) {
		return nil, r.ErrInvalidTransition
	}

	a.Status = upd.Status
	if upd.QuoteID != "" {
		a.QuoteID = upd.QuoteID
	}
	if upd.QuoteExpiresAt != nil {
		a.QuoteExpiresAt = upd.QuoteExpiresAt
	}
	if len(upd.QuoteSnapshot) > 0 {
		a.QuoteSnapshot = upd.QuoteSnapshot
	}
	if upd.OrderID != "" {
		a.OrderID = upd.OrderID
	}
	if upd.PaymentStatus != "" {
		a.PaymentStatus = upd.PaymentStatus
	}
	a.ErrorCode = upd.ErrorCode
	a.ErrorMessage = upd.ErrorMessage

	cp := *a
	return &cp, nil
}
