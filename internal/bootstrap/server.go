package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/airticketing/api"
	"github.com/Domenick1991/airticketing/config"
	"github.com/Domenick1991/airticketing/internal/payment"
	"github.com/Domenick1991/airticketing/internal/service/flights"
	"github.com/Domenick1991/airticketing/internal/service/seatmap"
	"github.com/Domenick1991/airticketing/internal/service/ticket"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails.
func Run(ctx context.Context, cfg *config.Config, flightSvc flights.FlightUseCase, seatMapSvc seatmap.SeatMapUseCase, ticketSvc ticket.TicketUseCase, payments payment.Gateway) error {
	router := newRouter(cfg, flightSvc, seatMapSvc, ticketSvc, payments)

	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newRouter(cfg *config.Config, flightSvc flights.FlightUseCase, seatMapSvc seatmap.SeatMapUseCase, ticketSvc ticket.TicketUseCase, payments payment.Gateway) *gin.Engine {
	router := gin.Default()

	flightHandler := api.NewFlightHandler(flightSvc, seatMapSvc)
	ticketHandler := api.NewTicketHandler(ticketSvc, payments)

	flightHandler.Register(router.Group("/flights"))
	ticketHandler.Register(router.Group("/tickets"))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.HTTP.SwaggerDir != "" {
		router.Static("/swagger", cfg.HTTP.SwaggerDir)
		router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(
			httpSwagger.URL("/swagger/airticketing.swagger.json"),
		)))
	}

	return router
}
