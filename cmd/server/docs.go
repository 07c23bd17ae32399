package main

//go:generate swag init -g cmd/server/main.go -o docs

// @title           Stakemarket API
// @version         0.1.0
// @description     Social prediction markets: staking, resolution, and payouts.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
