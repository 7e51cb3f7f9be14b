package logfile

import "grimm.is/scribe/internal/errors"

// Paths names the three record logs.
type Paths struct {
	Traffic     string
	ConnNew     string
	Connections string
}

// Set is the traffic log plus the two connection logs.
type Set struct {
	Traffic     *File
	ConnNew     *File
	Connections *File
}

// OpenSet opens all three logs. On failure the ones already open are closed.
func OpenSet(p Paths) (*Set, error) {
	s := &Set{}
	var err error
	if s.Traffic, err = Open(p.Traffic); err != nil {
		return nil, err
	}
	if s.ConnNew, err = Open(p.ConnNew); err != nil {
		s.Close()
		return nil, err
	}
	if s.Connections, err = Open(p.Connections); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// ReopenTraffic reopens the traffic log at p.Traffic.
func (s *Set) ReopenTraffic(p Paths) error {
	return s.Traffic.Reopen(p.Traffic)
}

// ReopenConnections reopens both connection logs.
func (s *Set) ReopenConnections(p Paths) error {
	if err := s.ConnNew.Reopen(p.ConnNew); err != nil {
		return err
	}
	return s.Connections.Reopen(p.Connections)
}

// Close closes every open log and reports all failures.
func (s *Set) Close() error {
	var errs []error
	for _, f := range []*File{s.Traffic, s.ConnNew, s.Connections} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
