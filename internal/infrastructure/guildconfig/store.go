// Package guildconfig loads guild policies from a directory of files and
// serves them as immutable snapshots.
package guildconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"tempvoice/internal/core/domain"
	"tempvoice/internal/core/ports"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

var _ ports.GuildConfigStore = (*Store)(nil)

// guildFile is the on-disk shape of one guild.
type guildFile struct {
	ID         domain.GuildID   `yaml:"id" json:"id"`
	Name       string           `yaml:"name" json:"name"`
	LogChannel domain.ChannelID `yaml:"log_channel" json:"log_channel"`
	Creators   []creatorFile    `yaml:"creators" json:"creators"`
}

type creatorFile struct {
	General struct {
		Name     string           `yaml:"name" json:"name"`
		Channel  domain.ChannelID `yaml:"channel" json:"channel"`
		Category domain.ChannelID `yaml:"category" json:"category"`
	} `yaml:"general" json:"general"`
	Default *domain.CreatorDefaults `yaml:"default" json:"default"`
	Disable domain.CreatorDisable   `yaml:"disable" json:"disable"`
	Role    domain.CreatorRoles     `yaml:"role" json:"role"`
}

// Store serves the policies found in dir. Reload builds a complete new
// snapshot before publishing it; on any error the previous one stays.
type Store struct {
	dir    string
	logger *zap.SugaredLogger

	reloadMu sync.Mutex
	snapshot atomic.Pointer[domain.PolicySnapshot]
}

// NewStore loads dir once and returns the store.
func NewStore(ctx context.Context, dir string, logger *zap.SugaredLogger) (*Store, error) {
	s := &Store{dir: dir, logger: logger}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticStore serves a fixed set of policies. Reload is a no-op.
func NewStaticStore(policies []*domain.GuildPolicy, logger *zap.SugaredLogger) (*Store, error) {
	for _, p := range policies {
		if err := Validate(p); err != nil {
			return nil, err
		}
	}
	s := &Store{logger: logger}
	s.snapshot.Store(domain.NewPolicySnapshot(policies))
	return s, nil
}

func (s *Store) Policy(guildID domain.GuildID) (*domain.GuildPolicy, bool) {
	return s.snapshot.Load().Guild(guildID)
}

func (s *Store) Snapshot() *domain.PolicySnapshot {
	return s.snapshot.Load()
}

func (s *Store) Reload(ctx context.Context) error {
	if s.dir == "" {
		return nil
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	policies, err := LoadDir(ctx, s.dir)
	if err != nil {
		s.logger.Errorw("guild config reload failed, keeping previous snapshot", "dir", s.dir, "error", err)
		return err
	}

	s.snapshot.Store(domain.NewPolicySnapshot(policies))
	s.logger.Infow("guild config loaded", "dir", s.dir, "guilds", len(policies))
	return nil
}

// LoadDir reads every .yaml, .yml and .json file in dir. Files are read in
// name order; a guild id may appear in only one file.
func LoadDir(ctx context.Context, dir string) ([]*domain.GuildPolicy, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read guild config dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	seen := make(map[domain.GuildID]string, len(names))
	policies := make([]*domain.GuildPolicy, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(dir, name)
		p, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[p.GuildID]; dup {
			return nil, fmt.Errorf("%w: guild %d defined in %s and %s", domain.ErrInvalidPolicy, p.GuildID, prev, name)
		}
		seen[p.GuildID] = name
		policies = append(policies, p)
	}

	return policies, nil
}

// LoadFile parses and validates a single guild file.
func LoadFile(path string) (*domain.GuildPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read guild config %s: %w", path, err)
	}
	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}
	p, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return p, nil
}

// Format selects the decoder of a guild file.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// Parse decodes a guild file and applies creator defaults.
func Parse(data []byte, format Format) (*domain.GuildPolicy, error) {
	var f guildFile
	var err error
	if format == FormatJSON {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPolicy, err)
	}

	p := &domain.GuildPolicy{
		GuildID:    f.ID,
		Name:       f.Name,
		LogChannel: f.LogChannel,
		Creators:   make([]domain.CreatorPolicy, 0, len(f.Creators)),
	}
	for _, c := range f.Creators {
		cp := domain.CreatorPolicy{
			Name:     c.General.Name,
			Channel:  c.General.Channel,
			Category: c.General.Category,
			Disable:  c.Disable,
			Roles:    c.Role,
		}
		if c.Default != nil {
			cp.Default = *c.Default
		}
		if cp.Default.ChannelName == "" {
			cp.Default.ChannelName = domain.DefaultChannelName
		}
		p.Creators = append(p.Creators, cp)
	}

	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate enforces the structural rules of a guild policy: a guild id,
// at least one creator, and entry-point and category ids unique per guild.
func Validate(p *domain.GuildPolicy) error {
	if p.GuildID == 0 {
		return fmt.Errorf("%w: missing guild id", domain.ErrInvalidPolicy)
	}
	if len(p.Creators) == 0 {
		return fmt.Errorf("%w: guild %d has no creators", domain.ErrInvalidPolicy, p.GuildID)
	}

	channels := make(map[domain.ChannelID]struct{}, len(p.Creators))
	categories := make(map[domain.ChannelID]struct{}, len(p.Creators))
	for i, c := range p.Creators {
		if c.Channel == 0 || c.Category == 0 {
			return fmt.Errorf("%w: guild %d creator %d needs channel and category", domain.ErrInvalidPolicy, p.GuildID, i)
		}
		if _, dup := channels[c.Channel]; dup {
			return fmt.Errorf("%w: guild %d entry point %d listed twice", domain.ErrInvalidPolicy, p.GuildID, c.Channel)
		}
		if _, dup := categories[c.Category]; dup {
			return fmt.Errorf("%w: guild %d category %d listed twice", domain.ErrInvalidPolicy, p.GuildID, c.Category)
		}
		if c.Default.ChannelSize < 0 || c.Default.ChannelSize > 99 {
			return fmt.Errorf("%w: guild %d creator %d channel_size out of range", domain.ErrInvalidPolicy, p.GuildID, i)
		}
		channels[c.Channel] = struct{}{}
		categories[c.Category] = struct{}{}
	}
	return nil
}
