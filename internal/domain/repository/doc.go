// Package repository define los contratos de dominio del almacenamiento
// persistente de usuarios.
//
// Las implementaciones concretas viven en internal/store/memory (dev/tests) e
// internal/store/pg (PostgreSQL).
//
//	┌─────────────────────────────────────┐
//	│   services/auth · session.Guard     │
//	└─────────────────────────────────────┘
//	                  │
//	                  ▼
//	┌─────────────────────────────────────┐
//	│  domain/repository (UserRepository) │
//	└─────────────────────────────────────┘
//	          │                 │
//	          ▼                 ▼
//	┌─────────────────┐ ┌─────────────────┐
//	│  store/memory   │ │    store/pg     │
//	└─────────────────┘ └─────────────────┘
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Los emails se comparan normalizados (NormalizeEmail)
//   - Errores de dominio están en errors.go
package repository
