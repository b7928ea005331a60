// Package services implements the driving port interfaces.
// Services contain the core business logic - ingestion coordination,
// hybrid retrieval, the answer pipeline state machine, groundedness
// evaluation, and response caching - and orchestrate calls to driven
// ports (adapters).
package services
