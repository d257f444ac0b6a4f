package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func DurationMs(v time.Duration) zap.Field { return zap.Int64("duration_ms", v.Milliseconds()) }

func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - FLUJOS
// =================================================================================

// Flow identifica el flujo (signup, login, recovery, session).
func Flow(v string) zap.Field { return zap.String("flow", v) }

// FlowID es el identificador del FlowRecord. No es secreto.
func FlowID(v string) zap.Field { return zap.String("flow_id", v) }

// Stage es la etapa dentro del flujo (start, resend, verify, reset).
func Stage(v string) zap.Field { return zap.String("stage", v) }

// Outcome es el resultado cerrado de una etapa.
func Outcome(v string) zap.Field { return zap.String("outcome", v) }

func UserID(v string) zap.Field { return zap.String("user_id", v) }

// Email loguea la dirección enmascarada (a…@e….com); nunca la completa.
func Email(v string) zap.Field { return zap.String("email", MaskEmail(v)) }

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

func Component(v string) zap.Field { return zap.String("component", v) }

func Op(v string) zap.Field { return zap.String("op", v) }

// Layer: handler, service, repository.
func Layer(v string) zap.Field { return zap.String("layer", v) }

func Err(err error) zap.Field { return zap.Error(err) }

func String(key, v string) zap.Field { return zap.String(key, v) }

func Int(key string, v int) zap.Field { return zap.Int(key, v) }

func Any(key string, v any) zap.Field { return zap.Any(key, v) }
