package backend

import (
	"grimm.is/scribe/internal/config"
	"grimm.is/scribe/internal/errors"
)

// Handle is an open definitions source. Each getter returns the enabled
// entities of one kind.
type Handle interface {
	Interfaces() ([]Interface, error)
	Zones() ([]Zone, error)
	Services() ([]Service, error)
	Close() error
}

// Backend opens definition handles.
type Backend interface {
	Open(cfg config.Backend) (Handle, error)
}

// Default dispatches on cfg.Type to the file or SQLite backend.
type Default struct{}

// Open implements Backend.
func (Default) Open(cfg config.Backend) (Handle, error) {
	switch cfg.Type {
	case config.BackendFile, "":
		return OpenFile(cfg.Path)
	case config.BackendSQLite:
		return OpenSQLite(cfg.Path)
	}
	return nil, errors.Attr(errors.Errorf(errors.KindValidation, "unknown backend type %q", cfg.Type), "type", cfg.Type)
}

// docHandle serves the entities of an already loaded document.
type docHandle struct {
	doc    *Document
	closed bool
}

func (h *docHandle) check() error {
	if h.closed {
		return errors.New(errors.KindUnavailable, "backend handle is closed")
	}
	return nil
}

func (h *docHandle) Interfaces() ([]Interface, error) {
	if err := h.check(); err != nil {
		return nil, err
	}
	return h.doc.InterfaceList()
}

func (h *docHandle) Zones() ([]Zone, error) {
	if err := h.check(); err != nil {
		return nil, err
	}
	return h.doc.ZoneList()
}

func (h *docHandle) Services() ([]Service, error) {
	if err := h.check(); err != nil {
		return nil, err
	}
	return h.doc.ServiceList()
}

func (h *docHandle) Close() error {
	if h.closed {
		return errors.New(errors.KindConflict, "backend handle already closed")
	}
	h.closed = true
	h.doc = nil
	return nil
}

// Load opens cfg, reads every entity and closes the handle again.
func Load(b Backend, cfg config.Backend) (*Definitions, []string, error) {
	h, err := b.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	defer h.Close()

	defs := &Definitions{}
	if defs.Interfaces, err = h.Interfaces(); err != nil {
		return nil, nil, err
	}
	if defs.Zones, err = h.Zones(); err != nil {
		return nil, nil, err
	}
	if defs.Services, err = h.Services(); err != nil {
		return nil, nil, err
	}
	return defs, Check(defs), nil
}
