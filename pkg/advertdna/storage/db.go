package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/himanishpuri/AdvertDNA/pkg/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const errDBClientNil = "db client is nil"

// ErrNameTaken is returned when a name is already indexed for different
// source bytes.
var ErrNameTaken = errors.New("advertisement name already registered")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Advertisement is the engine's record of an indexed clip. Name is unique, so
// concurrent indexing of the same canonical name converges on one row.
type Advertisement struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	Name        string `gorm:"type:varchar(250);uniqueIndex:idx_advertisement_name;not null"`
	FileSHA1    string `gorm:"type:varchar(40);index:idx_advertisement_sha1"`
	DurationMs  int
	TotalHashes int
	CreatedAt   time.Time
}

type Fingerprint struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	Hash            uint32 `gorm:"index:idx_hash"`
	AdvertisementID string `gorm:"type:varchar(36);index:idx_advertisement"`
	AnchorTimeMs    uint32
}

func NewDBClient(conn Connection) (*DBClient, error) {
	dsn, err := conn.DSN()
	if err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch conn.Dialect() {
	case DialectPostgres:
		dialector = postgres.Open(dsn)
	default:
		if dir := filepath.Dir(conn.Database); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating db dir: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s db: %w", conn.Dialect(), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Advertisement{}, &Fingerprint{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// RegisterAdvertisement inserts an advertisement row unless one with the same
// name exists. An existing row is returned only when it was indexed from the
// same bytes, otherwise the call fails with ErrNameTaken. created reports
// whether this call inserted the row.
func (c *DBClient) RegisterAdvertisement(name, fileSHA1 string, durationMs, totalHashes int) (ad *Advertisement, created bool, err error) {
	if c == nil || c.DB == nil {
		return nil, false, errors.New(errDBClientNil)
	}

	existing, err := c.findByName(name)
	if err == nil {
		return sameSource(existing, fileSHA1)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("querying existing advertisement: %w", err)
	}

	row := Advertisement{
		ID:          uuid.NewString(),
		Name:        name,
		FileSHA1:    fileSHA1,
		DurationMs:  durationMs,
		TotalHashes: totalHashes,
	}
	if err := c.DB.Create(&row).Error; err != nil {
		// Lost a race on the unique name: the winner's row is authoritative.
		if existing, fetchErr := c.findByName(name); fetchErr == nil {
			return sameSource(existing, fileSHA1)
		}
		return nil, false, fmt.Errorf("creating advertisement: %w", err)
	}

	return &row, true, nil
}

func sameSource(existing *Advertisement, fileSHA1 string) (*Advertisement, bool, error) {
	if existing.FileSHA1 != fileSHA1 {
		return nil, false, fmt.Errorf("%w: %q", ErrNameTaken, existing.Name)
	}
	return existing, false, nil
}

func (c *DBClient) findByName(name string) (*Advertisement, error) {
	var ad Advertisement
	if err := c.DB.Where("name = ?", name).First(&ad).Error; err != nil {
		return nil, err
	}
	return &ad, nil
}

// FindBySHA1 returns the advertisement whose source bytes hash to fileSHA1.
func (c *DBClient) FindBySHA1(fileSHA1 string) (*Advertisement, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var ad Advertisement
	if err := c.DB.Where("file_sha1 = ?", fileSHA1).First(&ad).Error; err != nil {
		return nil, err
	}
	return &ad, nil
}

func (c *DBClient) GetAdvertisementsByIDs(ids []string) (map[string]Advertisement, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	out := make(map[string]Advertisement, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []Advertisement
	if err := c.DB.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying advertisements: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

// DeleteAdvertisementByID removes a row and its hashes. Only used to roll
// back a failed index.
func (c *DBClient) DeleteAdvertisementByID(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("advertisement_id = ?", id).Delete(&Fingerprint{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Advertisement{}).Error
	})
}

func (c *DBClient) StoreFingerprints(fp map[uint32][]models.Couple) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}

	entries := make([]Fingerprint, 0, 1024)
	flush := func() error {
		if len(entries) == 0 {
			return nil
		}
		if err := c.DB.CreateInBatches(entries, 500).Error; err != nil {
			return fmt.Errorf("batch insert fingerprints: %w", err)
		}
		entries = entries[:0]
		return nil
	}

	for hash, couples := range fp {
		for _, cou := range couples {
			entries = append(entries, Fingerprint{
				Hash:            hash,
				AdvertisementID: cou.AdvertisementID,
				AnchorTimeMs:    cou.AnchorTimeMs,
			})
			if len(entries) >= 1000 {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	return flush()
}

// GetCouplesByHashes fetches every stored couple for the given hashes,
// querying in chunks to stay under driver parameter limits.
func (c *DBClient) GetCouplesByHashes(hashes []uint32) (map[uint32][]models.Couple, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	result := make(map[uint32][]models.Couple)
	const chunk = 500
	for start := 0; start < len(hashes); start += chunk {
		end := min(start+chunk, len(hashes))

		var rows []Fingerprint
		if err := c.DB.Where("hash IN ?", hashes[start:end]).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("batch querying fingerprints: %w", err)
		}
		for _, r := range rows {
			result[r.Hash] = append(result[r.Hash], models.Couple{
				AdvertisementID: r.AdvertisementID,
				AnchorTimeMs:    r.AnchorTimeMs,
			})
		}
	}
	return result, nil
}
