package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // exchange calendars name IANA zones

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Rajchodisetti/chaingate/internal/chain"
	"github.com/Rajchodisetti/chaingate/internal/margin"
	"github.com/Rajchodisetti/chaingate/internal/session"
	"github.com/Rajchodisetti/chaingate/internal/universe"
)

type Logging struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type Metrics struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

type Catalog struct {
	Path             string `yaml:"path"`
	RefreshPerMinute int    `yaml:"refresh_per_minute"`
}

type Journal struct {
	Path             string `yaml:"path"`
	DedupeWindowSecs int    `yaml:"dedupe_window_seconds"`
}

type Paper struct {
	HoldingsPath   string `yaml:"holdings_path"`
	LatencyMsMin   int    `yaml:"latency_ms_min"`
	LatencyMsMax   int    `yaml:"latency_ms_max"`
	SlippageBpsMin int    `yaml:"slippage_bps_min"`
	SlippageBpsMax int    `yaml:"slippage_bps_max"`
	Seed           int64  `yaml:"seed"`
}

// Calendar is the config form of an exchange calendar. Clock values are HH:MM in the
// exchange time zone; holidays are YYYY-MM-DD.
type Calendar struct {
	Timezone      string   `yaml:"timezone"`
	Open          string   `yaml:"open"`
	Close         string   `yaml:"close"`
	ExtendedOpen  string   `yaml:"extended_open"`
	ExtendedClose string   `yaml:"extended_close"`
	TradingDays   []string `yaml:"trading_days"`
	Holidays      []string `yaml:"holidays"`
}

// MarginProfile holds decimal strings so figures like 0.1 are exact.
type MarginProfile struct {
	InitialIntraday      string `yaml:"initial_intraday"`
	InitialOvernight     string `yaml:"initial_overnight"`
	MaintenanceIntraday  string `yaml:"maintenance_intraday"`
	MaintenanceOvernight string `yaml:"maintenance_overnight"`
}

type Admission struct {
	ExtendedHoursSymbols []string `yaml:"extended_hours_symbols"`
}

type Universe struct {
	Name             string         `yaml:"name"`
	Exchange         string         `yaml:"exchange"`
	AsOfOffsetDays   int            `yaml:"as_of_offset_days"`
	OnlyAtMarketOpen bool           `yaml:"only_at_market_open"`
	Spec             chain.SpecDef  `yaml:"spec"`
	Options          *chain.SpecDef `yaml:"options,omitempty"`
}

type Store struct {
	DSN         string `yaml:"dsn"` // empty: catalog comes from catalog.path
	TablePrefix string `yaml:"table_prefix"`
}

type Redis struct {
	Addr          string `yaml:"addr"` // empty disables publication
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

type Root struct {
	Logging   Logging                  `yaml:"logging"`
	Metrics   Metrics                  `yaml:"metrics"`
	Catalog   Catalog                  `yaml:"catalog"`
	Journal   Journal                  `yaml:"journal"`
	Paper     Paper                    `yaml:"paper"`
	Calendars map[string]Calendar      `yaml:"calendars"`
	Margins   map[string]MarginProfile `yaml:"margins"`
	Admission Admission                `yaml:"admission"`
	Universes []Universe               `yaml:"universes"`
	Store     Store                    `yaml:"store"`
	Redis     Redis                    `yaml:"redis"`
}

// Load reads path, fills defaults and checks that calendars, margins and universe
// specs build. A malformed universe spec fails here, never at selection time.
func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, errors.Wrapf(err, "parse %s", path)
	}
	c.applyDefaults()

	if _, err := c.Registry(); err != nil {
		return c, err
	}
	if _, err := c.MarginProfiles(); err != nil {
		return c, err
	}
	if _, err := c.UniverseConfigs(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Root) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "fixtures/catalog.yaml"
	}
	if c.Catalog.RefreshPerMinute == 0 {
		c.Catalog.RefreshPerMinute = 1
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "data/journal.jsonl"
	}
	if c.Journal.DedupeWindowSecs == 0 {
		c.Journal.DedupeWindowSecs = 90
	}
	if c.Paper.HoldingsPath == "" {
		c.Paper.HoldingsPath = "data/holdings.json"
	}
	if c.Paper.LatencyMsMin == 0 {
		c.Paper.LatencyMsMin = 100
	}
	if c.Paper.LatencyMsMax == 0 {
		c.Paper.LatencyMsMax = 2000
	}
	if c.Paper.SlippageBpsMin == 0 {
		c.Paper.SlippageBpsMin = 1
	}
	if c.Paper.SlippageBpsMax == 0 {
		c.Paper.SlippageBpsMax = 5
	}
	if c.Redis.ChannelPrefix == "" {
		c.Redis.ChannelPrefix = "chain"
	}
	for i := range c.Universes {
		if c.Universes[i].Name == "" {
			c.Universes[i].Name = "universe_" + strconv.Itoa(i)
		}
	}
}

// Registry builds every configured exchange calendar.
func (c Root) Registry() (session.Registry, error) {
	cals := make([]session.Calendar, 0, len(c.Calendars))
	for exchange, cc := range c.Calendars {
		cal, err := cc.Build(exchange)
		if err != nil {
			return session.Registry{}, err
		}
		cals = append(cals, cal)
	}
	return session.NewRegistry(cals...), nil
}

// Build converts the config form into a session.Calendar.
func (cc Calendar) Build(exchange string) (session.Calendar, error) {
	loc := time.UTC
	if cc.Timezone != "" {
		l, err := time.LoadLocation(cc.Timezone)
		if err != nil {
			return session.Calendar{}, errors.Wrapf(err, "calendar %s: timezone", exchange)
		}
		loc = l
	}

	var w session.Window
	clocks := []struct {
		name string
		in   string
		out  *time.Duration
	}{
		{"open", cc.Open, &w.Open},
		{"close", cc.Close, &w.Close},
		{"extended_open", cc.ExtendedOpen, &w.ExtendedOpen},
		{"extended_close", cc.ExtendedClose, &w.ExtendedClose},
	}
	for _, ck := range clocks {
		if ck.in == "" {
			continue
		}
		d, err := session.ParseClock(ck.in)
		if err != nil {
			return session.Calendar{}, errors.Wrapf(err, "calendar %s: %s", exchange, ck.name)
		}
		*ck.out = d
	}

	var days []time.Weekday
	for _, s := range cc.TradingDays {
		d, ok := parseWeekday(s)
		if !ok {
			return session.Calendar{}, errors.Errorf("calendar %s: unknown trading day %q", exchange, s)
		}
		days = append(days, d)
	}

	var holidays []time.Time
	for _, s := range cc.Holidays {
		h, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc)
		if err != nil {
			return session.Calendar{}, errors.Wrapf(err, "calendar %s: holiday", exchange)
		}
		holidays = append(holidays, h)
	}
	return session.NewCalendar(exchange, loc, w, days, holidays)
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return 0, false
	}
	d, ok := weekdays[s[:3]]
	return d, ok
}

// MarginProfiles parses every configured margin profile. Missing figures parse as zero
// and are left for the margin gate to reject.
func (c Root) MarginProfiles() (map[string]margin.Profile, error) {
	out := make(map[string]margin.Profile, len(c.Margins))
	for key, mp := range c.Margins {
		p, err := mp.Profile()
		if err != nil {
			return nil, errors.Wrapf(err, "margins %s", key)
		}
		out[key] = p
	}
	return out, nil
}

func (mp MarginProfile) Profile() (margin.Profile, error) {
	var p margin.Profile
	fields := []struct {
		name string
		in   string
		out  *decimal.Decimal
	}{
		{margin.FieldInitialIntraday, mp.InitialIntraday, &p.InitialIntraday},
		{margin.FieldInitialOvernight, mp.InitialOvernight, &p.InitialOvernight},
		{margin.FieldMaintenanceIntraday, mp.MaintenanceIntraday, &p.MaintenanceIntraday},
		{margin.FieldMaintenanceOvernight, mp.MaintenanceOvernight, &p.MaintenanceOvernight},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.in) == "" {
			continue
		}
		d, err := decimal.NewFromString(strings.TrimSpace(f.in))
		if err != nil {
			return p, errors.Wrapf(err, "%s", f.name)
		}
		*f.out = d
	}
	return p, nil
}

// UniverseConfigs parses every universe spec.
func (c Root) UniverseConfigs() ([]UniverseConfig, error) {
	out := make([]UniverseConfig, 0, len(c.Universes))
	for _, u := range c.Universes {
		spec, err := chain.ParseSpec(u.Name, u.Spec)
		if err != nil {
			return nil, err
		}
		if _, ok := c.Calendars[u.Exchange]; !ok {
			return nil, errors.Errorf("universe %s: no calendar for exchange %q", u.Name, u.Exchange)
		}
		uc := UniverseConfig{
			Exchange: u.Exchange,
			Config: universe.Config{
				Name:             u.Name,
				Spec:             spec,
				AsOfOffsetDays:   u.AsOfOffsetDays,
				OnlyAtMarketOpen: u.OnlyAtMarketOpen,
			},
		}
		if u.Options != nil {
			opts, err := chain.ParseSpec(u.Name+"_options", *u.Options)
			if err != nil {
				return nil, err
			}
			uc.Options = &opts
		}
		out = append(out, uc)
	}
	return out, nil
}

// UniverseConfig is a parsed universe plus the exchange whose calendar drives it.
type UniverseConfig struct {
	universe.Config
	Exchange string
}
