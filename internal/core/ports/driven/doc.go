// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the answering pipeline to function:
//
//   - ChunkStore: document and chunk-manifest persistence
//   - VectorIndex: nearest-neighbour storage keyed by chunk ID
//   - LexicalIndex: ranked keyword search over chunk text
//   - EmbeddingService: maps chunk text to fixed-size vectors
//   - GenerationService: maps grounding prompts to structured drafts
//   - Normaliser / NormaliserRegistry: raw bytes to normalised text
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
