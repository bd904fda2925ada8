package main

// General API documentation for swaggo. Generate docs with `swag init -g cmd/codegend/docs.go`.
//
// @title           codegend API
// @version         1.0
// @description     HTTP and WebSocket API for streaming code generation through Ollama.
//
// @contact.name   codegend maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
