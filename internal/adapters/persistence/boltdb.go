package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	boltdb "github.com/andrew-solarstorm/bolt-db"
	"github.com/bytedance/sonic"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/dmm-router/internal/domain"
)

const (
	tokensBucketPrefix = "tokens-"

	DefaultDBPath = "./data/tokens.db"
)

type StoredToken struct {
	ChainID  uint64 `json:"chainId"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
}

// Storage keeps resolved ERC20 metadata, one bucket per chain.
type Storage struct {
	db     *boltdb.BoltDatabase
	dbPath string
}

func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db := boltdb.NewBoltDatabase(dbPath)
	if db == nil {
		return nil, fmt.Errorf("failed to open database at %s", dbPath)
	}

	log.Info().Str("path", dbPath).Msg("[tokenStorage] opened database")

	return &Storage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func bucketFor(chainID uint64) string {
	return tokensBucketPrefix + strconv.FormatUint(chainID, 10)
}

func (s *Storage) SaveToken(token domain.Token) error {
	if token.IsNative() {
		return fmt.Errorf("native token %s is not stored", token)
	}
	data, err := sonic.Marshal(tokenToStored(token))
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	return s.db.Set(bucketFor(token.ChainID), []byte(token.Address.Hex()), data)
}

func (s *Storage) SaveTokenBatch(tokens []domain.Token) error {
	if len(tokens) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	for _, token := range tokens {
		if token.IsNative() {
			continue
		}
		data, err := sonic.Marshal(tokenToStored(token))
		if err != nil {
			return fmt.Errorf("failed to marshal token %s: %w", token.Address.Hex(), err)
		}

		value := data
		op := &boltdb.WriteOperation{
			Bucket: []byte(bucketFor(token.ChainID)),
			Key:    []byte(token.Address.Hex()),
			Value:  &value,
			Op:     boltdb.OpSet,
		}
		if err := batch.Add(op); err != nil {
			return fmt.Errorf("failed to add token %s to batch: %w", token.Address.Hex(), err)
		}
	}

	if err := batch.Execute(); err != nil {
		log.Error().Err(err).Int("count", len(tokens)).Msg("[tokenStorage] FAILED to execute batch")
		return err
	}

	log.Info().Int("count", len(tokens)).Msg("[tokenStorage] saved token batch")
	return nil
}

// LoadTokens returns every stored token of chainID. Undecodable entries are
// skipped.
func (s *Storage) LoadTokens(chainID uint64) ([]domain.Token, error) {
	data, err := s.db.List(bucketFor(chainID))
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}

	tokens := make([]domain.Token, 0, len(data))
	failed := 0
	for address, value := range data {
		var stored StoredToken
		if err := sonic.Unmarshal(value, &stored); err != nil {
			log.Error().Str("address", address).Err(err).Msg("[tokenStorage] failed to unmarshal token, skipping")
			failed++
			continue
		}
		token, err := storedToToken(&stored)
		if err != nil {
			log.Error().Str("address", address).Err(err).Msg("[tokenStorage] failed to convert stored token, skipping")
			failed++
			continue
		}
		tokens = append(tokens, token)
	}

	log.Info().
		Uint64("chainId", chainID).
		Int("total_in_db", len(data)).
		Int("loaded", len(tokens)).
		Int("failed", failed).
		Msg("[tokenStorage] token loading completed")
	return tokens, nil
}

func tokenToStored(t domain.Token) *StoredToken {
	return &StoredToken{
		ChainID:  t.ChainID,
		Address:  t.Address.Hex(),
		Decimals: t.Decimals,
		Symbol:   t.Symbol,
	}
}

func storedToToken(stored *StoredToken) (domain.Token, error) {
	if !common.IsHexAddress(stored.Address) {
		return domain.Token{}, fmt.Errorf("invalid address %q", stored.Address)
	}
	return domain.NewERC20(stored.ChainID, common.HexToAddress(stored.Address), stored.Decimals, stored.Symbol), nil
}
