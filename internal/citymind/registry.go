package citymind

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Registry maps account ids to their session clients with an explicit
// create/destroy lifecycle. One client per account; creating a duplicate is
// an error rather than a silent replacement.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Client
	logger  *zap.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		clients: map[string]*Client{},
		logger:  logger,
	}
}

// Create builds and registers a client for the account.
func (r *Registry) Create(accountID string, cfg ConfigData, callbacks Callbacks, opts ...Option) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[accountID]; exists {
		return nil, fmt.Errorf("session client already registered for account %s", accountID)
	}

	client := NewClient(cfg, r.logger.With(zap.String("account_id", accountID)), callbacks, opts...)
	r.clients[accountID] = client

	r.logger.Debug("session client registered", zap.String("account_id", accountID))

	return client, nil
}

// Get returns the client registered for the account, if any.
func (r *Registry) Get(accountID string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[accountID]

	return client, ok
}

// Destroy terminates and removes the account's client. Unknown accounts
// are a no-op.
func (r *Registry) Destroy(accountID string) {
	r.mu.Lock()
	client, ok := r.clients[accountID]
	delete(r.clients, accountID)
	r.mu.Unlock()

	if ok {
		client.Terminate()
		r.logger.Debug("session client destroyed", zap.String("account_id", accountID))
	}
}

// Close destroys every registered client.
func (r *Registry) Close() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for accountID, client := range r.clients {
		clients = append(clients, client)
		delete(r.clients, accountID)
	}
	r.mu.Unlock()

	for _, client := range clients {
		client.Terminate()
	}
}
