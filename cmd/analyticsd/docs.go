package main

//go:generate swag init -g cmd/analyticsd/main.go -o docs

// @title           Trade Analytics API
// @version         0.1.0
// @description     Owner analysis documents, user risk snapshots and job controls.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
