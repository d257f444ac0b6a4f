// Package logger expone un logger Zap singleton con scoping por contexto.
//
// # Design Decisions
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context Scoping: cada request lleva su propio logger con request_id,
//     method y path, inyectado por middlewares.WithLogging.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//   - Los códigos OTP y los tokens de etapa nunca se loguean fuera de dev.
//
// # Usage
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("SignupService.Start"))
//	log.Error("create user failed", logger.Err(err))
package logger
