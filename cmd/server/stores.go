package main

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"

	attendanceservice "kiosk/internal/attendance/service"
	attendancestore "kiosk/internal/attendance/store"
	branchservice "kiosk/internal/branch/service"
	branchstore "kiosk/internal/branch/store"
	deviceservice "kiosk/internal/device/service"
	devicestore "kiosk/internal/device/store"
	otpservice "kiosk/internal/otp/service"
	otpstore "kiosk/internal/otp/store"
	staffservice "kiosk/internal/staff/service"
	staffstore "kiosk/internal/staff/store"
	"kiosk/internal/trust"
	"kiosk/internal/trust/lockout"
	lockoutstore "kiosk/internal/trust/lockout/store"
	audit "kiosk/pkg/platform/audit"
	auditmemory "kiosk/pkg/platform/audit/store/memory"
	auditpostgres "kiosk/pkg/platform/audit/store/postgres"
)

type branchStore interface {
	branchservice.Store
	trust.Branches
}

type deviceStore interface {
	deviceservice.Store
	trust.Devices
}

type stores struct {
	branches   branchStore
	devices    deviceStore
	otp        otpservice.Store
	staff      staffservice.Store
	attendance attendanceservice.Store
	lockout    lockout.Store
	audit      audit.Store
	outbox     *auditpostgres.Store
	ping       func(ctx context.Context) error
}

// newStores selects Postgres when a database is configured and in-memory
// stores otherwise. PIN lockout counters prefer Redis when available.
func newStores(db *sql.DB, rdb redis.UniversalClient) stores {
	var s stores
	if db != nil {
		outbox := auditpostgres.New(db)
		s = stores{
			branches:   branchstore.NewPostgres(db),
			devices:    devicestore.NewPostgres(db),
			otp:        otpstore.NewPostgres(db),
			staff:      staffstore.NewPostgres(db),
			attendance: attendancestore.NewPostgres(db),
			lockout:    lockoutstore.NewPostgres(db),
			audit:      outbox,
			outbox:     outbox,
			ping:       db.PingContext,
		}
	} else {
		s = stores{
			branches:   branchstore.NewInMemory(),
			devices:    devicestore.NewInMemory(),
			otp:        otpstore.NewInMemory(),
			staff:      staffstore.NewInMemory(),
			attendance: attendancestore.NewInMemory(),
			lockout:    lockoutstore.NewInMemory(),
			audit:      auditmemory.NewInMemoryStore(),
		}
	}
	if rdb != nil {
		s.lockout = lockoutstore.NewRedis(rdb)
	}
	return s
}
