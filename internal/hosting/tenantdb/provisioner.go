// Package tenantdb crea y elimina la base Mongo y el usuario de cada tenant.
// Cada llamada abre y cierra su propio cliente.
package tenantdb

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/observability/logger"
)

// Collection inicial; Nightscout la espera para guardar lecturas.
const entriesCollection = "entries"

var nameRe = regexp.MustCompile(`^[a-z0-9-]{2,32}$`)

type Config struct {
	URL            string
	ConnectTimeout time.Duration
}

// Stats son datos observados de la base, no persistidos.
type Stats struct {
	SizeBytes int64
	LastEntry *time.Time
}

type Provisioner struct {
	cfg Config
	log *zap.Logger
}

func New(cfg Config) *Provisioner {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &Provisioner{cfg: cfg, log: logger.Named("hosting.tenantdb")}
}

func (p *Provisioner) connect(ctx context.Context) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(p.cfg.URL).
		SetConnectTimeout(p.cfg.ConnectTimeout).
		SetServerSelectionTimeout(p.cfg.ConnectTimeout)
	return mongo.Connect(ctx, opts)
}

func (p *Provisioner) disconnect(c *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Disconnect(ctx); err != nil {
		p.log.Debug("mongo disconnect", logger.Err(err))
	}
}

// Exists reporta si existen la base y el usuario name. Cualquier error de
// conexión o comando se reporta como false.
func (p *Provisioner) Exists(ctx context.Context, name string) bool {
	if !nameRe.MatchString(name) {
		return false
	}
	c, err := p.connect(ctx)
	if err != nil {
		p.log.Warn("exists: connect failed", logger.Subdomain(name), logger.Err(err))
		return false
	}
	defer p.disconnect(c)

	dbs, err := c.ListDatabaseNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		p.log.Warn("exists: listDatabases failed", logger.Subdomain(name), logger.Err(err))
		return false
	}
	if len(dbs) == 0 {
		return false
	}

	var info struct {
		Users []bson.M `bson:"users"`
	}
	if err := c.Database(name).RunCommand(ctx, usersInfoCommand(name)).Decode(&info); err != nil {
		p.log.Warn("exists: usersInfo failed", logger.Subdomain(name), logger.Err(err))
		return false
	}
	return len(info.Users) > 0
}

// Create crea la base (materializada con la colección entries) y un usuario
// readWrite sobre ella. Si createUser falla la base queda creada.
func (p *Provisioner) Create(ctx context.Context, name, password string) error {
	const op = "db.create"
	if !nameRe.MatchString(name) {
		return errs.Validation(op, name, "invalid database name %q", name)
	}
	if password == "" {
		return errs.Validation(op, name, "empty password")
	}
	c, err := p.connect(ctx)
	if err != nil {
		return &errs.Error{Kind: errs.KindProvisioning, Op: op, Subdomain: name, Step: "connect", Err: err}
	}
	defer p.disconnect(c)

	db := c.Database(name)
	if err := db.CreateCollection(ctx, entriesCollection); err != nil && !isNamespaceExists(err) {
		return &errs.Error{Kind: errs.KindProvisioning, Op: op, Subdomain: name, Step: "create_database", Err: err}
	}
	if err := db.RunCommand(ctx, createUserCommand(name, password)).Err(); err != nil {
		return &errs.Error{Kind: errs.KindProvisioning, Op: op, Subdomain: name, Step: "create_user", Err: err}
	}
	p.log.Info("tenant database created", logger.Subdomain(name))
	return nil
}

// Delete borra el usuario y luego la base. Las fallas se loguean y se
// descartan; el caller debe re-chequear con Exists.
func (p *Provisioner) Delete(ctx context.Context, name string) error {
	if !nameRe.MatchString(name) {
		return errs.Validation("db.delete", name, "invalid database name %q", name)
	}
	c, err := p.connect(ctx)
	if err != nil {
		p.log.Error("delete: connect failed", logger.Subdomain(name), logger.Err(err))
		return nil
	}
	defer p.disconnect(c)

	db := c.Database(name)
	if err := db.RunCommand(ctx, bson.D{{Key: "dropUser", Value: name}}).Err(); err != nil {
		p.log.Error("delete: dropUser failed", logger.Subdomain(name), logger.Err(err))
	}
	if err := db.Drop(ctx); err != nil {
		p.log.Error("delete: dropDatabase failed", logger.Subdomain(name), logger.Err(err))
		return nil
	}
	p.log.Info("tenant database dropped", logger.Subdomain(name))
	return nil
}

// Stats lee dbStats y la fecha del último documento de entries.
func (p *Provisioner) Stats(ctx context.Context, name string) (Stats, error) {
	var st Stats
	if !nameRe.MatchString(name) {
		return st, errs.Validation("db.stats", name, "invalid database name %q", name)
	}
	c, err := p.connect(ctx)
	if err != nil {
		return st, errs.IO("db.stats", name, "connect", err)
	}
	defer p.disconnect(c)

	db := c.Database(name)
	var raw struct {
		DataSize  float64 `bson:"dataSize"`
		IndexSize float64 `bson:"indexSize"`
	}
	if err := db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&raw); err != nil {
		return st, errs.IO("db.stats", name, "dbStats", err)
	}
	st.SizeBytes = int64(raw.DataSize + raw.IndexSize)

	var last struct {
		Date float64 `bson:"date"`
	}
	find := options.FindOne().SetSort(bson.D{{Key: "date", Value: -1}}).SetProjection(bson.D{{Key: "date", Value: 1}})
	err = db.Collection(entriesCollection).FindOne(ctx, bson.D{}, find).Decode(&last)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
	case err != nil:
		return st, errs.IO("db.stats", name, "last_entry", err)
	case last.Date > 0:
		ts := time.UnixMilli(int64(last.Date)).UTC()
		st.LastEntry = &ts
	}
	return st, nil
}

func usersInfoCommand(name string) bson.D {
	return bson.D{{Key: "usersInfo", Value: bson.D{{Key: "user", Value: name}, {Key: "db", Value: name}}}}
}

func createUserCommand(name, password string) bson.D {
	return bson.D{
		{Key: "createUser", Value: name},
		{Key: "pwd", Value: password},
		{Key: "roles", Value: bson.A{
			bson.D{{Key: "role", Value: "readWrite"}, {Key: "db", Value: name}},
		}},
	}
}

// NamespaceExists (48): la base ya tenía la colección.
func isNamespaceExists(err error) bool {
	var ce mongo.CommandError
	return errors.As(err, &ce) && ce.Code == 48
}
