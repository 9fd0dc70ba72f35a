package capability

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// VisionHealthProbe returns a ProbeFunc that asks the vision inference
// sidecar whether it is serving, via the standard gRPC health protocol.
// Connection or RPC failure of any kind reports false.
func VisionHealthProbe(url string, logger *zap.Logger) ProbeFunc {
	return func(ctx context.Context) bool {
		opts := []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithKeepaliveParams(keepalive.ClientParameters{
				Time:                10 * time.Second,
				Timeout:             3 * time.Second,
				PermitWithoutStream: true,
			}),
		}

		conn, err := grpc.NewClient(url, opts...)
		if err != nil {
			logger.Warn("Vision sidecar dial failed", zap.String("url", url), zap.Error(err))
			return false
		}
		defer conn.Close()

		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			logger.Warn("Vision sidecar health check failed", zap.String("url", url), zap.Error(err))
			return false
		}

		return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}
}
