package certstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/sensiblebit/x509kit"
	_ "modernc.org/sqlite"
)

// sqliteCertRow maps a row in the SQLite certificates table.
type sqliteCertRow struct {
	ID                   int64          `db:"id"`
	Fingerprint          string         `db:"fingerprint"`
	SubjectKeyIdentifier string         `db:"subject_key_identifier"`
	SerialNumber         string         `db:"serial_number"`
	Subject              string         `db:"subject"`
	Issuer               string         `db:"issuer"`
	CommonName           sql.NullString `db:"common_name"`
	CertType             string         `db:"cert_type"`
	KeyType              string         `db:"key_type"`
	Encoding             string         `db:"encoding"`
	NotBefore            time.Time      `db:"not_before"`
	Expiry               time.Time      `db:"expiry"`
	Source               string         `db:"source"`
	MetadataJSON         types.JSONText `db:"metadata"`
	Data                 []byte         `db:"data"`
}

// sqliteKeyRow maps a row in the SQLite keys table.
type sqliteKeyRow struct {
	ID                   int64  `db:"id"`
	SubjectKeyIdentifier string `db:"subject_key_identifier"`
	KeyType              string `db:"key_type"`
	BitLength            int    `db:"bit_length"`
	Curve                string `db:"curve"`
	Source               string `db:"source"`
	KeyData              []byte `db:"key_data"`
}

// certMetadata is stored as JSON alongside each certificate for ad hoc
// querying with the sqlite3 shell.
type certMetadata struct {
	SignatureAlgorithm string   `json:"signature_algorithm"`
	KeyUsages          []string `json:"key_usages,omitempty"`
	IsCA               bool     `json:"is_ca"`
}

// openMemDB creates an in-memory SQLite database with the catalogue schema.
func openMemDB() (*sqlx.DB, error) {
	dsn := "file::memory:?_pragma=temp_store(2)&_pragma=journal_mode(off)&_pragma=synchronous(off)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return db, nil
}

// initSQLiteSchema creates the certificates and keys tables.
func initSQLiteSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS certificates (
			id                      integer PRIMARY KEY,
			fingerprint             text NOT NULL UNIQUE,
			subject_key_identifier  text NOT NULL,
			serial_number           text NOT NULL,
			subject                 text NOT NULL,
			issuer                  text NOT NULL,
			common_name             text,
			cert_type               text NOT NULL,
			key_type                text NOT NULL,
			encoding                text NOT NULL,
			not_before              timestamp,
			expiry                  timestamp,
			source                  text NOT NULL,
			metadata                text,
			data                    blob NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating certificates table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_certificates_ski ON certificates (subject_key_identifier);
	`)
	if err != nil {
		return fmt.Errorf("creating SKI index: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS keys (
			id INTEGER PRIMARY KEY,
			subject_key_identifier TEXT NOT NULL UNIQUE,
			key_type TEXT,
			bit_length INTEGER,
			curve TEXT,
			source TEXT,
			key_data BLOB NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating keys table: %w", err)
	}
	return nil
}

// LoadFromSQLite opens a SQLite database file and copies its certificates
// and keys into the given MemStore. Certificates are recaptured from their
// stored original bytes, so BER certificates stay BER.
func LoadFromSQLite(store *MemStore, dbPath string) error {
	db, err := openMemDB()
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	_, err = db.Exec("ATTACH DATABASE ? AS diskdb", dbPath)
	if err != nil {
		return fmt.Errorf("attaching database %s: %w", dbPath, err)
	}
	defer func() {
		if _, detachErr := db.Exec("DETACH DATABASE diskdb"); detachErr != nil {
			slog.Warn("detaching database", "path", dbPath, "error", detachErr)
		}
	}()

	if _, err = db.Exec("INSERT OR IGNORE INTO certificates SELECT * FROM diskdb.certificates"); err != nil {
		return fmt.Errorf("loading certificates from %s: %w", dbPath, err)
	}
	if _, err = db.Exec("INSERT OR IGNORE INTO keys SELECT * FROM diskdb.keys"); err != nil {
		return fmt.Errorf("loading keys from %s: %w", dbPath, err)
	}

	var certs []sqliteCertRow
	if err := db.Select(&certs, "SELECT * FROM certificates ORDER BY id"); err != nil {
		return fmt.Errorf("reading certificates: %w", err)
	}
	for _, c := range certs {
		var (
			cert *x509kit.CapturedCertificate
			err  error
		)
		if c.Encoding == x509kit.EncodingBER.String() {
			cert, err = x509kit.ParseCapturedBER(c.Data)
		} else {
			cert, err = x509kit.ParseCapturedDER(c.Data)
		}
		if err != nil {
			slog.Debug("skipping certificate with invalid data", "fingerprint", c.Fingerprint, "error", err)
			continue
		}
		if err := store.HandleCertificate(cert, c.Source); err != nil {
			slog.Warn("loading cert from DB", "fingerprint", c.Fingerprint, "error", err)
		}
	}

	var keys []sqliteKeyRow
	if err := db.Select(&keys, "SELECT * FROM keys ORDER BY id"); err != nil {
		return fmt.Errorf("reading keys: %w", err)
	}
	for _, k := range keys {
		kp, err := x509kit.KeyPairFromPKCS8DER(k.KeyData)
		clear(k.KeyData)
		if err != nil {
			slog.Warn("parsing key from DB", "ski", k.SubjectKeyIdentifier, "error", err)
			continue
		}
		if err := store.HandleKey(kp, k.Source); err != nil {
			slog.Warn("loading key from DB", "ski", k.SubjectKeyIdentifier, "error", err)
		}
	}

	slog.Info("loaded database into store", "path", dbPath, "certificates", len(certs), "keys", len(keys))
	return nil
}

// SaveToSQLite writes the contents of a MemStore to a new SQLite database
// file. Private keys are stored as unencrypted PKCS#8.
func SaveToSQLite(store *MemStore, dbPath string) error {
	db, err := openMemDB()
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	for _, rec := range store.AllCertsFlat() {
		row, err := certRow(rec)
		if err != nil {
			slog.Warn("preparing cert for DB", "serial", rec.Cert.SerialNumber(), "error", err)
			continue
		}
		_, err = db.NamedExec(`
			INSERT OR IGNORE INTO certificates (fingerprint, subject_key_identifier, serial_number, subject, issuer, common_name, cert_type, key_type, encoding, not_before, expiry, source, metadata, data)
			VALUES (:fingerprint, :subject_key_identifier, :serial_number, :subject, :issuer, :common_name, :cert_type, :key_type, :encoding, :not_before, :expiry, :source, :metadata, :data)
		`, row)
		if err != nil {
			slog.Warn("saving cert to DB", "serial", rec.Cert.SerialNumber(), "error", err)
		}
	}

	for _, rec := range store.AllKeysFlat() {
		pkcs8 := rec.Key.PKCS8DER()
		row := sqliteKeyRow{
			SubjectKeyIdentifier: rec.SKI,
			KeyType:              strings.ToLower(rec.KeyType),
			BitLength:            rec.BitLength,
			Source:               rec.Source,
			KeyData:              pkcs8.Bytes(),
		}
		if alg, err := rec.Key.KeyAlgorithm(); err == nil && alg.Kind == x509kit.KeyKindECDSA {
			row.Curve = alg.Curve.String()
		}
		_, err := db.NamedExec(`
			INSERT OR IGNORE INTO keys (subject_key_identifier, key_type, bit_length, curve, source, key_data)
			VALUES (:subject_key_identifier, :key_type, :bit_length, :curve, :source, :key_data)
		`, row)
		pkcs8.Destroy()
		if err != nil {
			slog.Warn("saving key to DB", "ski", rec.SKI, "error", err)
		}
	}

	// VACUUM INTO produces a clean, compact copy and refuses to overwrite.
	if _, err := db.Exec("VACUUM INTO ?", dbPath); err != nil {
		return fmt.Errorf("saving database to %s: %w", dbPath, err)
	}

	slog.Info("database saved", "path", dbPath)
	return nil
}

func certRow(rec *CertRecord) (sqliteCertRow, error) {
	cert := rec.Cert
	fp, err := cert.SHA256Fingerprint()
	if err != nil {
		return sqliteCertRow{}, err
	}
	meta := certMetadata{}
	if sig, err := cert.SignatureAlgorithm(); err == nil {
		meta.SignatureAlgorithm = sig.String()
	} else {
		meta.SignatureAlgorithm = cert.SignatureAlgorithmOID().String()
	}
	for _, ku := range cert.KeyUsages() {
		meta.KeyUsages = append(meta.KeyUsages, ku.String())
	}
	meta.IsCA, _, _ = cert.BasicConstraints()
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return sqliteCertRow{}, fmt.Errorf("encoding metadata: %w", err)
	}

	cn, hasCN := cert.SubjectCommonName()
	return sqliteCertRow{
		Fingerprint:          x509kit.ColonHex(fp),
		SubjectKeyIdentifier: rec.SKI,
		SerialNumber:         cert.SerialNumber().String(),
		Subject:              cert.Subject().String(),
		Issuer:               cert.Issuer().String(),
		CommonName:           sql.NullString{String: cn, Valid: hasCN},
		CertType:             rec.CertType,
		KeyType:              rec.KeyType,
		Encoding:             cert.Encoding().String(),
		NotBefore:            rec.NotBefore,
		Expiry:               rec.NotAfter,
		Source:               rec.Source,
		MetadataJSON:         types.JSONText(metaJSON),
		Data:                 cert.ConstructedData(),
	}, nil
}
