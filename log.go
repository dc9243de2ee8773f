package cassandrapool

import "go.uber.org/zap"

// ZapLogListener is the default PoolListener, rendering events as structured
// zap log lines. It implements only the hooks it has something useful to say
// about; embedding BasePoolListener fills in the rest as no-ops rather than
// requiring a type switch over an unbounded event union, so checked-out and
// checked-in events are not logged.
type ZapLogListener struct {
	BasePoolListener
	logger *zap.Logger
}

// NewZapLogListener wraps logger (or a no-op logger if nil) as a
// PoolListener.
func NewZapLogListener(logger *zap.Logger) *ZapLogListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogListener{logger: logger}
}

func (z *ZapLogListener) log(common EventCommon, msg string, fields ...zap.Field) {
	fields = append(fields, zap.String("pool_type", common.PoolType), zap.String("pool_id", common.PoolID))
	switch common.Level {
	case LevelDebug:
		z.logger.Debug(msg, fields...)
	case LevelWarn:
		z.logger.Warn(msg, fields...)
	case LevelError:
		z.logger.Error(msg, fields...)
	case LevelCritical:
		z.logger.Error(msg, append(fields, zap.String("level", "critical"))...)
	default:
		z.logger.Info(msg, fields...)
	}
}

func (z *ZapLogListener) ConnectionCreated(ev ConnectionCreatedEvent) {
	z.log(ev.EventCommon, "connection created", zap.String("message", ev.Message), zap.Error(ev.Err))
}

func (z *ZapLogListener) ConnectionDisposed(ev ConnectionDisposedEvent) {
	z.log(ev.EventCommon, "connection disposed", zap.String("message", ev.Message), zap.Error(ev.Err))
}

func (z *ZapLogListener) ConnectionRecycled(ev ConnectionRecycledEvent) {
	z.log(ev.EventCommon, "connection recycled")
}

func (z *ZapLogListener) ConnectionFailed(ev ConnectionFailedEvent) {
	z.log(ev.EventCommon, "connection failed", zap.String("server", ev.Server.String()), zap.Error(ev.Err))
}

func (z *ZapLogListener) ServerListObtained(ev ServerListObtainedEvent) {
	servers := make([]string, len(ev.ServerList))
	for i, s := range ev.ServerList {
		servers[i] = s.String()
	}
	z.log(ev.EventCommon, "server list obtained", zap.Strings("servers", servers))
}

func (z *ZapLogListener) PoolRecreated(ev PoolRecreatedEvent) {
	z.log(ev.EventCommon, "pool recreated")
}

func (z *ZapLogListener) PoolDisposed(ev PoolDisposedEvent) {
	z.log(ev.EventCommon, "pool disposed")
}

func (z *ZapLogListener) PoolAtMax(ev PoolAtMaxEvent) {
	z.log(ev.EventCommon, "pool at max capacity", zap.Int("pool_max", ev.PoolMax))
}
