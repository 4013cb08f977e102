// Package importer loads client monitoring configurations from YAML.
package importer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ibeckermayer/replyscout/internal/matcher"
	"github.com/ibeckermayer/replyscout/internal/schedule"
	"github.com/ibeckermayer/replyscout/internal/types"
)

// File represents the structure of an import file
type File struct {
	Clients []ClientSpec `yaml:"clients"`
}

// ClientSpec is one client and its configurations.
type ClientSpec struct {
	Name           string              `yaml:"name"`
	Configurations []ConfigurationSpec `yaml:"configurations"`
}

// ConfigurationSpec describes one monitoring configuration.
// Keywords wrapped in slashes, like "/dead\s*lock/", are regular expressions.
type ConfigurationSpec struct {
	Name       string             `yaml:"name"`
	Subreddits []string           `yaml:"subreddits"`
	Keywords   []string           `yaml:"keywords"`
	Voice      string             `yaml:"voice"`
	Active     *bool               `yaml:"active"`
	Schedule   *types.ScanSchedule `yaml:"schedule"`
}

// alwaysOn is the schedule of a configuration imported without one.
func alwaysOn() types.ScanSchedule {
	return types.ScanSchedule{
		IntervalMinutes: types.DefaultIntervalMinutes,
		ActiveStartHour: 0,
		ActiveEndHour:   23,
		ActiveDays:      []int{1, 2, 3, 4, 5, 6, 7},
	}
}

// Store is the persistence the importer writes to.
type Store interface {
	CreateClient(ctx context.Context, name string) (int64, error)
	CreateConfiguration(ctx context.Context, c *types.Configuration) (int64, error)
}

// LoadFile reads and validates an import file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates import data.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(f.Clients) == 0 {
		return nil, fmt.Errorf("no clients defined")
	}
	for _, c := range f.Clients {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("client without a name")
		}
		for _, cs := range c.Configurations {
			if _, err := cs.toConfiguration(0); err != nil {
				return nil, fmt.Errorf("client %s, configuration %q: %w", c.Name, cs.Name, err)
			}
		}
	}
	return &f, nil
}

// toConfiguration converts the spec, applying defaults and validating
// everything a scan would otherwise reject.
func (cs ConfigurationSpec) toConfiguration(clientID int64) (*types.Configuration, error) {
	c := &types.Configuration{
		ClientID: clientID,
		Name:     cs.Name,
		Voice:    strings.TrimSpace(cs.Voice),
		Active:   cs.Active == nil || *cs.Active,
		Schedule: alwaysOn(),
	}
	if cs.Schedule != nil {
		c.Schedule = *cs.Schedule
	}
	if c.Schedule.IntervalMinutes <= 0 {
		c.Schedule.IntervalMinutes = types.DefaultIntervalMinutes
	}

	for _, s := range cs.Subreddits {
		if sub := types.NormalizeSubreddit(s); sub != "" {
			c.Subreddits = append(c.Subreddits, sub)
		}
	}
	if c.Active && len(c.Subreddits) == 0 {
		return nil, fmt.Errorf("an active configuration needs at least one subreddit")
	}

	for _, k := range cs.Keywords {
		c.Keywords = append(c.Keywords, matcher.ParseRule(k))
	}
	if _, err := matcher.Compile(c.Keywords); err != nil {
		return nil, err
	}

	if err := validateSchedule(c.Schedule); err != nil {
		return nil, err
	}
	if c.Active && len(c.Schedule.ActiveDays) == 0 {
		return nil, fmt.Errorf("schedule has no active_days, so the configuration would never be scanned")
	}
	return c, nil
}

func validateSchedule(s types.ScanSchedule) error {
	for _, h := range []int{s.ActiveStartHour, s.ActiveEndHour} {
		if h < 0 || h > 23 {
			return fmt.Errorf("active hour %d out of range 0-23", h)
		}
	}
	for _, d := range s.ActiveDays {
		if d < 1 || d > 7 {
			return fmt.Errorf("active day %d out of range 1-7", d)
		}
	}
	return nil
}

// Result reports what an import created.
type Result struct {
	Client          string
	ClientID        int64
	ConfigurationID int64
	Name            string
	NextDue         string
}

// Import creates every client and configuration in f. Clients are matched
// by name; configurations are always created anew. now is used to report
// when each configuration is first due.
func Import(ctx context.Context, st Store, f *File, now time.Time) ([]Result, error) {
	var results []Result
	for _, cs := range f.Clients {
		clientID, err := st.CreateClient(ctx, cs.Name)
		if err != nil {
			return results, fmt.Errorf("failed to create client %s: %w", cs.Name, err)
		}
		for _, spec := range cs.Configurations {
			c, err := spec.toConfiguration(clientID)
			if err != nil {
				return results, err
			}
			id, err := st.CreateConfiguration(ctx, c)
			if err != nil {
				return results, fmt.Errorf("failed to create configuration %q: %w", spec.Name, err)
			}

			next := "never"
			if t := schedule.NextDue(c.Schedule, now); !t.IsZero() {
				next = t.Format("Mon 15:04 MST")
			}
			results = append(results, Result{
				Client:          cs.Name,
				ClientID:        clientID,
				ConfigurationID: id,
				Name:            spec.Name,
				NextDue:         next,
			})
		}
	}
	return results, nil
}
