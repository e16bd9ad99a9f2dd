// Package logx configures aftercare's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Sinks/levels swappable at runtime via Service.Apply()
package logx
