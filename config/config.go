package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every setting the service reads from the environment.
// It is built once in main and passed by reference into each component;
// no component reads the environment on its own.
type Config struct {
	ListenAddr string // HTTP intake address.

	SQSQueueURL       string        // URL of the job queue.
	AWSRegion         string        // Region for SQS/S3 clients.
	VisibilityTimeout time.Duration // Lease held on a dequeued job.
	MaxAttempts       int           // Deliveries before a job is marked ERROR.

	PGHost     string
	PGPort     string
	PGName     string
	PGUser     string
	PGPassword string

	S3Bucket    string // Artifact bucket.
	ArtifactDir string // Local artifact directory when S3 is disabled.

	AuditScannerPath  string        // Vulnerability/license scanner binary.
	SecretScannerPath string        // Secret scanner binary.
	ScannerTimeout    time.Duration // Wall-clock limit per scanner run.

	Workers      int    // Consumer pool size.
	CloneMaxConc int    // Simultaneous clones across workers.
	WorkspaceRoot string // Base directory for per-job scratch space.

	ViralLicenses []string // License families that force grade F.

	EnableDB    bool // Postgres job store; in-memory store otherwise.
	EnableQueue bool // SQS queue; in-memory queue otherwise.
	EnableS3    bool // S3 publisher; local directory publisher otherwise.
}

func Load() Config {
	return Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		SQSQueueURL:       os.Getenv("SQS_QUEUE_URL"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		VisibilityTimeout: getEnvAsDuration("QUEUE_VISIBILITY_TIMEOUT", 10*time.Minute),
		MaxAttempts:       getEnvAsInt("QUEUE_MAX_ATTEMPTS", 3),

		PGHost:     os.Getenv("PG_HOST"),
		PGPort:     getEnv("PG_PORT", "5432"),
		PGName:     os.Getenv("PG_NAME"),
		PGUser:     os.Getenv("PG_USER"),
		PGPassword: os.Getenv("PG_PASSWORD"),

		S3Bucket:    os.Getenv("S3_BUCKET"),
		ArtifactDir: getEnv("ARTIFACT_DIR", "artifacts"),

		AuditScannerPath:  getEnv("AUDIT_SCANNER_PATH", "/usr/local/bin/trivy"),
		SecretScannerPath: getEnv("SECRET_SCANNER_PATH", "/usr/local/bin/gitleaks"),
		ScannerTimeout:    getEnvAsDuration("SCANNER_TIMEOUT", 5*time.Minute),

		Workers:       getEnvAsInt("WORKERS", 2),
		CloneMaxConc:  getEnvAsInt("CLONE_MAX_CONC", 3),
		WorkspaceRoot: getEnv("WORKSPACE_ROOT", os.TempDir()+"/complyscan"),

		ViralLicenses: getEnvAsList("VIRAL_LICENSES", []string{"GPL", "AGPL", "SSPL"}),

		EnableDB:    getEnvAsBool("ENABLE_DB", false),
		EnableQueue: getEnvAsBool("ENABLE_SQS", false),
		EnableS3:    getEnvAsBool("ENABLE_S3", false),
	}
}

// PostgresConnString builds the lib/pq DSN.
func (c Config) PostgresConnString() string {
	return "host=" + c.PGHost + " port=" + c.PGPort + " dbname=" + c.PGName +
		" user=" + c.PGUser + " password=" + c.PGPassword + " sslmode=disable"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	val, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsInt(key string, defaultVal int) int {
	val, err := strconv.Atoi(os.Getenv(key))
	if err != nil || val <= 0 {
		return defaultVal
	}
	return val
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	val, err := time.ParseDuration(os.Getenv(key))
	if err != nil || val <= 0 {
		return defaultVal
	}
	return val
}

func getEnvAsList(key string, defaultVal []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
