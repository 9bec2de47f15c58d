package logger

import (
	"time"

	"go.uber.org/zap"
)

// ---- HTTP ----

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field { return zap.String("method", v) }
func Path(v string) zap.Field { return zap.String("path", v) }
func Status(v int) zap.Field { return zap.Int("status", v) }
func Bytes(v int) zap.Field { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// DurationMs registra una duración en milisegundos.
func DurationMs(d time.Duration) zap.Field { return zap.Int64("duration_ms", d.Milliseconds()) }

// ---- hosting ----

// DomainID identifica el registro Domain (id numérico).
func DomainID(v int64) zap.Field { return zap.Int64("domain_id", v) }

// Subdomain es el nombre público del tenant (zona, vhost, db).
func Subdomain(v string) zap.Field { return zap.String("subdomain", v) }

// Action es la operación de lifecycle (initialize, start, ...).
func Action(v string) zap.Field { return zap.String("action", v) }

// Step identifica el paso dentro de una operación (zone.create, db.delete, ...).
func Step(v string) zap.Field { return zap.String("step", v) }

func ProcessName(v string) zap.Field { return zap.String("process", v) }
func Port(v int) zap.Field { return zap.Int("port", v) }
func Command(v string) zap.Field { return zap.String("command", v) }
func File(v string) zap.Field { return zap.String("file", v) }
func UserID(v string) zap.Field { return zap.String("user_id", v) }

// Email: usar con cuidado en prod.
func Email(v string) zap.Field { return zap.String("email", v) }

// ---- sistema ----

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field { return zap.String("op", v) }
func Layer(v string) zap.Field { return zap.String("layer", v) }
func Err(err error) zap.Field { return zap.Error(err) }
func Count(v int) zap.Field { return zap.Int("count", v) }

func Any(key string, v any) zap.Field { return zap.Any(key, v) }
func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
