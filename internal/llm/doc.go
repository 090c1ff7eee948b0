// ABOUTME: Package documentation for the language-model boundary.
// ABOUTME: The orchestrator depends only on the Client interface defined here.

// Package llm defines the completion boundary: conversation messages, tool
// descriptors in the function-call export shape, and a Client interface with
// one OpenAI-compatible HTTP implementation.
package llm
