// Package server assembles the gRPC server: interceptor chain and service
// registration.
package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthv1 "google.golang.org/grpc/health/grpc_health_v1"

	"ai-core-platform/security/internal/audit"
	"ai-core-platform/security/internal/server/interceptors"
)

// Health-check methods are served without a token and are not audited.
var healthMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/Watch": true,
}

// Deps holds the server's collaborators.
type Deps struct {
	// Tokens authenticates Bearer tokens on every non-public RPC.
	Tokens interceptors.TokenValidator
	// Emitter receives per-RPC audit events; nil disables RPC auditing.
	Emitter audit.EventEmitter
	// PublicMethods are additional full method names exempt from
	// authentication, merged with the health-check methods.
	PublicMethods []string
}

// New builds the gRPC server with the auth and audit interceptors installed
// and the standard health service registered. Callers register their own
// services on the returned server before Serve.
func New(deps Deps) (*grpc.Server, *health.Server) {
	public := make(map[string]bool, len(healthMethods)+len(deps.PublicMethods))
	for m := range healthMethods {
		public[m] = true
	}
	for _, m := range deps.PublicMethods {
		public[m] = true
	}

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.AuthUnary(deps.Tokens, public),
			interceptors.AuditUnary(deps.Emitter, healthMethods),
		),
	)

	healthSrv := health.NewServer()
	healthv1.RegisterHealthServer(srv, healthSrv)
	return srv, healthSrv
}
