package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JYuYuan/coupon-game-server/internal/session"
)

// StatusListener serves liveness and occupancy endpoints for operators
// and load balancers.
type StatusListener struct {
	addr  string
	coord *session.Coordinator
}

func NewStatusListener(addr string, coord *session.Coordinator) *StatusListener {
	return &StatusListener{
		addr:  addr,
		coord: coord,
	}
}

func (l *StatusListener) Start(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "game-server",
			"status":  "running",
		})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, l.coord.Stats())
	})

	svr := &http.Server{
		Addr:    l.addr,
		Handler: router,
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := svr.Shutdown(shutdownCtx); err != nil {
				slog.Warn("status listener shutdown", "error", err)
			}
		case <-done:
		}
	}()

	slog.InfoContext(ctx, "status listener starting", "addr", l.addr)

	err := svr.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving status on %s: %w", l.addr, err)
	}

	return nil
}
