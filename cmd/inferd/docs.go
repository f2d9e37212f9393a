package main

// General API documentation for swaggo. Regenerate the docs package with `swag init`.
//
// @title           inferd API
// @version         1.0
// @description     HTTP gateway for a locally supervised llama.cpp inference process.
//
// @contact.name   inferd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
