package constants

// Default server configuration values
const (
	DefaultServerPort           = 8084
	DefaultServerReadTimeoutSec = 15
	DefaultServerWriteTimeoutS  = 60
	DefaultServerIdleTimeoutSec = 60
	DefaultGracefulShutdownSec  = 30
	ServerErrorChannelSize      = 1
)

// Default Graph API client values
const (
	DefaultGraphAPIBaseURL    = "https://graph.microsoft.com/v1.0"
	DefaultGraphTimeoutSec    = 30
	DefaultGraphPageSize      = 50
	DefaultGraphRetryAttempts = 3
)

// Default retry/backoff values
const (
	DefaultBackoffInitialMs      = 500
	DefaultMaxBackoffMs          = 30000
	DefaultMaxAttempts           = 3
	DefaultDatabaseRetryAttempts = 3
)

// Default export pipeline values
const (
	DefaultExportRootDir        = "export"
	DefaultAssetsSubdir         = "assets"
	DefaultExportDocName        = "index.html"
	DefaultProgressTTLMin       = 30
	DefaultProgressEvictPeriodS = 60
	DefaultProgressPushPeriodMs = 500
	DefaultMaxReplyDepth        = 50
)

// Encryption parameters for at-rest chat ID protection in the job store
const (
	EncryptionSalt       = "teamsexport-job-store-v1"
	EncryptionLookupSalt = "teamsexport-lookup-v1"
)

// DriveURLPrefixSegments is the number of leading path segments in the
// vendor's personal-drive content URLs (site collection, personal root,
// library) that precede the path addressable via /me/drive/root:.
const DriveURLPrefixSegments = 3
