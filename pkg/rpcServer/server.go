// Package rpcServer exposes the ledgers over a JSON HTTP API.
package rpcServer

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/ledgerlabs/stakevault/internal/metrics"
	"github.com/ledgerlabs/stakevault/internal/metrics/metricsTypes"
	"github.com/ledgerlabs/stakevault/pkg/auditlog"
	"github.com/ledgerlabs/stakevault/pkg/stakeledger"
	"github.com/ledgerlabs/stakevault/pkg/tokenbank"
	"github.com/ledgerlabs/stakevault/pkg/vestingledger"
)

type RpcServerConfig struct {
	HttpPort int
}

type RpcServer struct {
	rpcConfig     *RpcServerConfig
	bank          *tokenbank.TokenBank
	stakeLedger   *stakeledger.StakeLedger
	vestingLedger *vestingledger.VestingLedger
	auditLog      *auditlog.AuditLog
	Logger        *zap.Logger
	metricsSink   *metrics.MetricsSink
}

// NewRpcServer wires the ledgers into an http server. auditLog may be nil
// when the database is disabled; the audit routes then respond 501.
func NewRpcServer(
	config *RpcServerConfig,
	bank *tokenbank.TokenBank,
	sl *stakeledger.StakeLedger,
	vl *vestingledger.VestingLedger,
	al *auditlog.AuditLog,
	l *zap.Logger,
	sink *metrics.MetricsSink,
) *RpcServer {
	return &RpcServer{
		rpcConfig:     config,
		bank:          bank,
		stakeLedger:   sl,
		vestingLedger: vl,
		auditLog:      al,
		Logger:        l,
		metricsSink:   sink,
	}
}

func (s *RpcServer) registerRoutes(router *mux.Router) {
	v1 := router.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/stake/deposit", WrapHandlerFunc(s.handleStakeDeposit)).Methods(http.MethodPost)
	v1.HandleFunc("/stake/withdraw", WrapHandlerFunc(s.handleStakeWithdraw)).Methods(http.MethodPost)
	v1.HandleFunc("/stake/claim-rewards", WrapHandlerFunc(s.handleStakeClaimRewards)).Methods(http.MethodPost)
	v1.HandleFunc("/stake/reward-rate", WrapHandlerFunc(s.handleSetRewardRate)).Methods(http.MethodPost)
	v1.HandleFunc("/stake/lock-period", WrapHandlerFunc(s.handleSetLockPeriod)).Methods(http.MethodPost)
	v1.HandleFunc("/stake/global", WrapHandlerFunc(s.handleStakeGlobal)).Methods(http.MethodGet)
	v1.HandleFunc("/stake/{address}", WrapHandlerFunc(s.handleStakeRecord)).Methods(http.MethodGet)

	v1.HandleFunc("/vesting/schedules", WrapHandlerFunc(s.handleCreateSchedule)).Methods(http.MethodPost)
	v1.HandleFunc("/vesting/claim", WrapHandlerFunc(s.handleVestingClaim)).Methods(http.MethodPost)
	v1.HandleFunc("/vesting/claim-all", WrapHandlerFunc(s.handleVestingClaimAll)).Methods(http.MethodPost)
	v1.HandleFunc("/vesting/revoke", WrapHandlerFunc(s.handleVestingRevoke)).Methods(http.MethodPost)
	v1.HandleFunc("/vesting/global", WrapHandlerFunc(s.handleVestingGlobal)).Methods(http.MethodGet)
	v1.HandleFunc("/vesting/schedules/{id}", WrapHandlerFunc(s.handleGetSchedule)).Methods(http.MethodGet)
	v1.HandleFunc("/vesting/beneficiary/{address}", WrapHandlerFunc(s.handleSchedulesOf)).Methods(http.MethodGet)

	v1.HandleFunc("/bank/approve", WrapHandlerFunc(s.handleBankApprove)).Methods(http.MethodPost)
	v1.HandleFunc("/bank/supply", WrapHandlerFunc(s.handleBankSupply)).Methods(http.MethodGet)
	v1.HandleFunc("/bank/balance/{address}", WrapHandlerFunc(s.handleBankBalance)).Methods(http.MethodGet)

	v1.HandleFunc("/audit/recent", WrapHandlerFunc(s.handleAuditRecent)).Methods(http.MethodGet)
	v1.HandleFunc("/audit/account/{address}", WrapHandlerFunc(s.handleAuditByAccount)).Methods(http.MethodGet)

	router.HandleFunc("/health", WrapHandlerFunc(s.handleHealth)).Methods(http.MethodGet)
}

func (s *RpcServer) Start(ctx context.Context, gracefulShutdown chan bool) error {
	router := mux.NewRouter()
	router.Use(s.observeRequests)
	s.registerRoutes(router)

	handler := cors.AllowAll().Handler(router)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.rpcConfig.HttpPort),
		Handler: handler,
	}

	go func() {
		s.Logger.Sugar().Infow("Starting http rpc server", zap.Int("port", s.rpcConfig.HttpPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Logger.Sugar().Errorw("http rpc server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Logger.Sugar().Infow("Shutting down http rpc server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.Logger.Sugar().Errorw("Failed to shut down http rpc server", zap.Error(err))
		}
		if gracefulShutdown != nil {
			gracefulShutdown <- true
		}
	}()

	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// observeRequests tags each request with an id and records request metrics.
func (s *RpcServer) observeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := uuid.New().String()
		w.Header().Set("X-Request-Id", requestId)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		labels := []metricsTypes.MetricsLabel{
			{Name: "method", Value: r.Method},
			{Name: "path", Value: route},
		}
		_ = s.metricsSink.Incr(metricsTypes.Metric_Incr_HttpRequest, append(labels,
			metricsTypes.MetricsLabel{Name: "status", Value: strconv.Itoa(recorder.status)},
		), 1)
		_ = s.metricsSink.Timing(metricsTypes.Metric_Timing_HttpDuration, elapsed, labels)

		s.Logger.Sugar().Debugw("Handled http request",
			zap.String("requestId", requestId),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("duration", elapsed),
		)
	})
}

func (s *RpcServer) handleHealth(w http.ResponseWriter, r *http.Request) error {
	return WriteJSON(w, map[string]string{"status": "ok"})
}
