package backend

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite" // pure Go driver, registers "sqlite"

	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/record"
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS interfaces (
	name     TEXT PRIMARY KEY,
	device   TEXT NOT NULL,
	address  TEXT NOT NULL DEFAULT '',
	dynamic  INTEGER NOT NULL DEFAULT 0,
	disabled INTEGER NOT NULL DEFAULT 0,
	position INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS zones (
	name     TEXT PRIMARY KEY,
	disabled INTEGER NOT NULL DEFAULT 0,
	position INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS networks (
	zone     TEXT NOT NULL REFERENCES zones(name) ON DELETE CASCADE,
	name     TEXT NOT NULL,
	network  TEXT NOT NULL,
	disabled INTEGER NOT NULL DEFAULT 0,
	position INTEGER NOT NULL,
	PRIMARY KEY (zone, name)
);
CREATE TABLE IF NOT EXISTS network_interfaces (
	zone      TEXT NOT NULL,
	network   TEXT NOT NULL,
	interface TEXT NOT NULL,
	position  INTEGER NOT NULL,
	FOREIGN KEY (zone, network) REFERENCES networks(zone, name) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS hosts (
	zone     TEXT NOT NULL,
	network  TEXT NOT NULL,
	name     TEXT NOT NULL,
	address  TEXT NOT NULL,
	disabled INTEGER NOT NULL DEFAULT 0,
	position INTEGER NOT NULL,
	PRIMARY KEY (zone, network, name),
	FOREIGN KEY (zone, network) REFERENCES networks(zone, name) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS services (
	name     TEXT PRIMARY KEY,
	disabled INTEGER NOT NULL DEFAULT 0,
	position INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS service_ports (
	service  TEXT NOT NULL REFERENCES services(name) ON DELETE CASCADE,
	proto    INTEGER NOT NULL,
	spec     TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL
);
`

func openDB(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Attr(errors.Wrap(err, errors.KindUnavailable, "failed to open database"), "path", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Attr(errors.Wrap(err, errors.KindUnavailable, "failed to connect to database"), "path", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Attr(errors.Wrap(err, errors.KindIO, "failed to initialize schema"), "path", path)
	}
	return db, nil
}

// sqliteHandle keeps the database open and re-reads it on every getter.
type sqliteHandle struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) a SQLite definitions database.
func OpenSQLite(path string) (Handle, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &sqliteHandle{db: db, path: path}, nil
}

func (h *sqliteHandle) document() (*Document, error) {
	if h.db == nil {
		return nil, errors.New(errors.KindUnavailable, "backend handle is closed")
	}
	doc, err := ReadDocument(context.Background(), h.db)
	if err != nil {
		return nil, errors.Attr(err, "path", h.path)
	}
	return doc, nil
}

func (h *sqliteHandle) Interfaces() ([]Interface, error) {
	doc, err := h.document()
	if err != nil {
		return nil, err
	}
	return doc.InterfaceList()
}

func (h *sqliteHandle) Zones() ([]Zone, error) {
	doc, err := h.document()
	if err != nil {
		return nil, err
	}
	return doc.ZoneList()
}

func (h *sqliteHandle) Services() ([]Service, error) {
	doc, err := h.document()
	if err != nil {
		return nil, err
	}
	return doc.ServiceList()
}

func (h *sqliteHandle) Close() error {
	if h.db == nil {
		return errors.New(errors.KindConflict, "backend handle already closed")
	}
	err := h.db.Close()
	h.db = nil
	return errors.Wrap(err, errors.KindIO, "failed to close database")
}

// ReadDocument loads the definitions stored in db.
func ReadDocument(ctx context.Context, db *sql.DB) (*Document, error) {
	doc := &Document{}

	var builtin string
	err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'builtin_services'`).Scan(&builtin)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, errors.Wrap(err, errors.KindIO, "read meta")
	default:
		doc.BuiltinServices = builtin == "1"
	}

	if err := readInterfaces(ctx, db, doc); err != nil {
		return nil, err
	}
	if err := readZones(ctx, db, doc); err != nil {
		return nil, err
	}
	if err := readServices(ctx, db, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func readInterfaces(ctx context.Context, db *sql.DB, doc *Document) error {
	rows, err := db.QueryContext(ctx,
		`SELECT name, device, address, dynamic, disabled FROM interfaces ORDER BY position`)
	if err != nil {
		return errors.Wrap(err, errors.KindIO, "read interfaces")
	}
	defer rows.Close()

	for rows.Next() {
		var d InterfaceDoc
		if err := rows.Scan(&d.Name, &d.Device, &d.Address, &d.Dynamic, &d.Disabled); err != nil {
			return errors.Wrap(err, errors.KindIO, "scan interface")
		}
		doc.Interfaces = append(doc.Interfaces, d)
	}
	return errors.Wrap(rows.Err(), errors.KindIO, "read interfaces")
}

func readZones(ctx context.Context, db *sql.DB, doc *Document) error {
	rows, err := db.QueryContext(ctx, `SELECT name, disabled FROM zones ORDER BY position`)
	if err != nil {
		return errors.Wrap(err, errors.KindIO, "read zones")
	}
	defer rows.Close()

	index := map[string]int{}
	for rows.Next() {
		var z ZoneDoc
		if err := rows.Scan(&z.Name, &z.Disabled); err != nil {
			return errors.Wrap(err, errors.KindIO, "scan zone")
		}
		index[z.Name] = len(doc.Zones)
		doc.Zones = append(doc.Zones, z)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.KindIO, "read zones")
	}
	rows.Close()

	nrows, err := db.QueryContext(ctx,
		`SELECT zone, name, network, disabled FROM networks ORDER BY zone, position`)
	if err != nil {
		return errors.Wrap(err, errors.KindIO, "read networks")
	}
	defer nrows.Close()

	type netKey struct{ zone, name string }
	netIndex := map[netKey]*NetworkDoc{}
	for nrows.Next() {
		var zone string
		var n NetworkDoc
		if err := nrows.Scan(&zone, &n.Name, &n.Network, &n.Disabled); err != nil {
			return errors.Wrap(err, errors.KindIO, "scan network")
		}
		zi, ok := index[zone]
		if !ok {
			continue
		}
		doc.Zones[zi].Networks = append(doc.Zones[zi].Networks, n)
	}
	if err := nrows.Err(); err != nil {
		return errors.Wrap(err, errors.KindIO, "read networks")
	}
	nrows.Close()

	// Pointers are taken after every append so they stay valid.
	for zi := range doc.Zones {
		for ni := range doc.Zones[zi].Networks {
			n := &doc.Zones[zi].Networks[ni]
			netIndex[netKey{doc.Zones[zi].Name, n.Name}] = n
		}
	}

	irows, err := db.QueryContext(ctx,
		`SELECT zone, network, interface FROM network_interfaces ORDER BY zone, network, position`)
	if err != nil {
		return errors.Wrap(err, errors.KindIO, "read network interfaces")
	}
	defer irows.Close()
	for irows.Next() {
		var k netKey
		var iface string
		if err := irows.Scan(&k.zone, &k.name, &iface); err != nil {
			return errors.Wrap(err, errors.KindIO, "scan network interface")
		}
		if n, ok := netIndex[k]; ok {
			n.Interfaces = append(n.Interfaces, iface)
		}
	}
	if err := irows.Err(); err != nil {
		return errors.Wrap(err, errors.KindIO, "read network interfaces")
	}
	irows.Close()

	hrows, err := db.QueryContext(ctx,
		`SELECT zone, network, name, address, disabled FROM hosts ORDER BY zone, network, position`)
	if err != nil {
		return errors.Wrap(err, errors.KindIO, "read hosts")
	}
	defer hrows.Close()
	for hrows.Next() {
		var k netKey
		var h HostDoc
		if err := hrows.Scan(&k.zone, &k.name, &h.Name, &h.Address, &h.Disabled); err != nil {
			return errors.Wrap(err, errors.KindIO, "scan host")
		}
		if n, ok := netIndex[k]; ok {
			n.Hosts = append(n.Hosts, h)
		}
	}
	return errors.Wrap(hrows.Err(), errors.KindIO, "read hosts")
}

func readServices(ctx context.Context, db *sql.DB, doc *Document) error {
	rows, err := db.QueryContext(ctx, `SELECT name, disabled FROM services ORDER BY position`)
	if err != nil {
		return errors.Wrap(err, errors.KindIO, "read services")
	}
	defer rows.Close()

	index := map[string]int{}
	for rows.Next() {
		var s ServiceDoc
		if err := rows.Scan(&s.Name, &s.Disabled); err != nil {
			return errors.Wrap(err, errors.KindIO, "scan service")
		}
		index[s.Name] = len(doc.Services)
		doc.Services = append(doc.Services, s)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.KindIO, "read services")
	}
	rows.Close()

	prows, err := db.QueryContext(ctx, `SELECT service, proto, spec FROM service_ports ORDER BY service, position`)
	if err != nil {
		return errors.Wrap(err, errors.KindIO, "read service ports")
	}
	defer prows.Close()
	for prows.Next() {
		var name, spec string
		var proto int
		if err := prows.Scan(&name, &proto, &spec); err != nil {
			return errors.Wrap(err, errors.KindIO, "scan service port")
		}
		si, ok := index[name]
		if !ok {
			continue
		}
		s := &doc.Services[si]
		switch uint8(proto) {
		case record.ProtoTCP:
			s.TCP = append(s.TCP, spec)
		case record.ProtoUDP:
			s.UDP = append(s.UDP, spec)
		case record.ProtoSCTP:
			s.SCTP = append(s.SCTP, spec)
		case record.ProtoICMP:
			s.ICMP = append(s.ICMP, spec)
		case record.ProtoICMPv6:
			s.ICMPv6 = append(s.ICMPv6, spec)
		default:
			s.Protocols = append(s.Protocols, proto)
		}
	}
	return errors.Wrap(prows.Err(), errors.KindIO, "read service ports")
}

// ImportToSQLite replaces the contents of the database at path with doc.
// The document is validated first so a broken file never reaches the database.
func ImportToSQLite(ctx context.Context, doc *Document, path string) error {
	if _, _, err := doc.Definitions(); err != nil {
		return err
	}

	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.KindIO, "begin import")
	}
	defer tx.Rollback()

	exec := func(query string, args ...any) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Attr(errors.Wrap(err, errors.KindIO, "import"), "query", query)
		}
		return nil
	}

	for _, table := range []string{"service_ports", "services", "hosts", "network_interfaces", "networks", "zones", "interfaces", "meta"} {
		if err := exec("DELETE FROM " + table); err != nil {
			return err
		}
	}

	if err := exec(`INSERT INTO meta (key, value) VALUES ('builtin_services', ?)`, boolText(doc.BuiltinServices)); err != nil {
		return err
	}

	for i, d := range doc.Interfaces {
		if err := exec(`INSERT INTO interfaces (name, device, address, dynamic, disabled, position) VALUES (?, ?, ?, ?, ?, ?)`,
			d.Name, d.Device, d.Address, d.Dynamic, d.Disabled, i); err != nil {
			return err
		}
	}

	for zi, z := range doc.Zones {
		if err := exec(`INSERT INTO zones (name, disabled, position) VALUES (?, ?, ?)`, z.Name, z.Disabled, zi); err != nil {
			return err
		}
		for ni, n := range z.Networks {
			if err := exec(`INSERT INTO networks (zone, name, network, disabled, position) VALUES (?, ?, ?, ?, ?)`,
				z.Name, n.Name, n.Network, n.Disabled, ni); err != nil {
				return err
			}
			for ii, iface := range n.Interfaces {
				if err := exec(`INSERT INTO network_interfaces (zone, network, interface, position) VALUES (?, ?, ?, ?)`,
					z.Name, n.Name, iface, ii); err != nil {
					return err
				}
			}
			for hi, h := range n.Hosts {
				if err := exec(`INSERT INTO hosts (zone, network, name, address, disabled, position) VALUES (?, ?, ?, ?, ?, ?)`,
					z.Name, n.Name, h.Name, h.Address, h.Disabled, hi); err != nil {
					return err
				}
			}
		}
	}

	for si, s := range doc.Services {
		if err := exec(`INSERT INTO services (name, disabled, position) VALUES (?, ?, ?)`, s.Name, s.Disabled, si); err != nil {
			return err
		}
		pos := 0
		add := func(proto uint8, spec string) error {
			pos++
			return exec(`INSERT INTO service_ports (service, proto, spec, position) VALUES (?, ?, ?, ?)`,
				s.Name, int(proto), spec, pos)
		}
		for _, group := range []struct {
			proto uint8
			specs []string
		}{
			{record.ProtoTCP, s.TCP},
			{record.ProtoUDP, s.UDP},
			{record.ProtoSCTP, s.SCTP},
			{record.ProtoICMP, s.ICMP},
			{record.ProtoICMPv6, s.ICMPv6},
		} {
			for _, spec := range group.specs {
				if err := add(group.proto, spec); err != nil {
					return err
				}
			}
		}
		for _, p := range s.Protocols {
			if err := add(uint8(p), ""); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.KindIO, "commit import")
	}
	return nil
}

func boolText(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
