// clara serves the Orion terminal character over HTTP, WebSocket, MCP and a
// local terminal UI.
//
// Environment variables (override the config file):
//
//	PORT                 HTTP listen port (default 3000)
//	CLARA_PROVIDER       openai, llm, huggingface, gemini or ollama (default llm)
//	LLM_API_KEY          key for the llm provider
//	OPENAI_API_KEY       key for the openai provider
//	GEMINI_API_KEY       key for the gemini provider (or GOOGLE_API_KEY)
//	HUGGINGFACE_API_KEY  key for the huggingface provider (or HF_API_KEY)
//	CLARA_MODEL          model override (HF_MODEL for huggingface)
//	CLARA_PERSONA, CLARA_LORE, CLARA_SCRIPT  asset overrides
//	CLARA_TRANSCRIPT_DB  SQLite transcript archive path
//
// Usage:
//
//	go install github.com/goblincore/clara/cmd/clara
//	clara serve
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
