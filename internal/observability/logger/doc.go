// Package logger expone un *zap.Logger compartido por todo el control plane.
//
// Se inicializa una vez desde main con Init y luego se obtiene con L() o,
// dentro de un request u operación de lifecycle, con From(ctx), que devuelve
// el logger "scoped" que inyectó el middleware (request_id, domain_id, etc.).
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Subdomain(d.Domain))
//	log.Info("vhost created", logger.Port(port))
package logger
