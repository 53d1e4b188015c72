// File: internal/shared/services.go
package shared

import "github.com/xkilldash9x/crmpilot/internal/config"

// Services bundles what every session of a run shares.
type Services struct {
	Random  *Random
	Journal *Journal
}

// NewServices builds the run's services from the journal configuration.
func NewServices(cfg config.JournalConfig) (*Services, error) {
	j, err := NewJournal(cfg)
	if err != nil {
		return nil, err
	}
	return &Services{Random: NewRandom(), Journal: j}, nil
}

// NewNopServices returns services that record nothing.
func NewNopServices() *Services {
	return &Services{Random: NewRandom(), Journal: NewNopJournal()}
}

// Close releases the journal files.
func (s *Services) Close() error {
	if s == nil || s.Journal == nil {
		return nil
	}
	return s.Journal.Close()
}
