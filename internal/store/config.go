package store

import "context"

// SetConfig stores a workspace-scoped metadata key/value pair,
// passed straight through to the driver. Config is not
// a document: it carries no author, timestamp, or signature, and never
// participates in LWW resolution or sync.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	if err := s.checkOpen("SetConfig"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drv.SetConfig(ctx, key, value)
}

// GetConfig reads a workspace-scoped metadata value.
func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	if err := s.checkOpen("GetConfig"); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drv.GetConfig(ctx, key)
}

// DeleteConfig removes one workspace-scoped metadata key.
func (s *Store) DeleteConfig(ctx context.Context, key string) error {
	if err := s.checkOpen("DeleteConfig"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drv.DeleteConfig(ctx, key)
}

// DeleteAllConfig clears every workspace-scoped metadata key.
func (s *Store) DeleteAllConfig(ctx context.Context) error {
	if err := s.checkOpen("DeleteAllConfig"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drv.DeleteAllConfig(ctx)
}
