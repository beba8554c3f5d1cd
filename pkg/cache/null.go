package cache

import "context"

// NullStore is a no-op store that never persists anything.
// Useful when caching should be disabled: every load sees an empty cache.
type NullStore struct{}

// NewNullStore creates a null store.
func NewNullStore() Store {
	return &NullStore{}
}

// Read always reports nothing stored.
func (s *NullStore) Read(ctx context.Context, name string) ([]byte, bool, error) {
	return nil, false, nil
}

// Write does nothing.
func (s *NullStore) Write(ctx context.Context, name string, data []byte) error {
	return nil
}

// Delete does nothing.
func (s *NullStore) Delete(ctx context.Context, name string) error {
	return nil
}

// Close does nothing.
func (s *NullStore) Close() error {
	return nil
}

// Ensure NullStore implements Store.
var _ Store = (*NullStore)(nil)
