// Package courts holds the site schedules, courts and linked groups loaded
// from configuration.
package courts

import (
	"fmt"
	"sort"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/config"
)

type SiteID string

type CourtID int64

type CapacityKind string

const (
	CapacityFixed  CapacityKind = config.CapacityFixed
	CapacityTiered CapacityKind = config.CapacityTiered
)

type Site struct {
	ID               SiteID  `json:"id"`
	Name             string  `json:"name"`
	OpensAt          int     `json:"opens_at"`
	ClosesAt         int     `json:"closes_at"`
	RefereeSupported bool    `json:"referee_supported"`
	DepositRequired  bool    `json:"deposit_required"`
	ChallengeCourt   CourtID `json:"challenge_court,omitempty"`
}

type Capacity struct {
	Kind    CapacityKind  `json:"kind"`
	Players int           `json:"players,omitempty"`
	Tiers   map[int]int64 `json:"tiers,omitempty"`
}

type Court struct {
	ID       CourtID  `json:"id"`
	Site     SiteID   `json:"site"`
	Name     string   `json:"name"`
	Capacity Capacity `json:"capacity"`
	Price    int64    `json:"price,omitempty"`
	GroupID  string   `json:"group_id,omitempty"`
}

type LinkedGroup struct {
	ID     string    `json:"id"`
	Courts []CourtID `json:"courts"`
}

// ScheduleConfig is a site's operating window in site-local hours.
type ScheduleConfig struct {
	OpensAt  int
	ClosesAt int
}

// Window returns the half-open [open, close) hour range; a close at or
// before the open wraps past midnight and is reported as close+24.
func (s ScheduleConfig) Window() (int, int) {
	closes := s.ClosesAt
	if closes <= s.OpensAt {
		closes += 24
	}
	return s.OpensAt, closes
}

func (s ScheduleConfig) Wraps() bool {
	return s.ClosesAt <= s.OpensAt
}

// Registry is the read-only arena of sites, courts and linked groups.
type Registry struct {
	sites      map[SiteID]Site
	siteOrder  []SiteID
	courts     map[CourtID]Court
	courtOrder []CourtID
	groups     map[string]LinkedGroup
	courtGroup map[CourtID]string
}

func NewRegistry(sites []Site, courtList []Court, groups []LinkedGroup) (*Registry, error) {
	reg := &Registry{
		sites:      make(map[SiteID]Site, len(sites)),
		courts:     make(map[CourtID]Court, len(courtList)),
		groups:     make(map[string]LinkedGroup, len(groups)),
		courtGroup: make(map[CourtID]string),
	}

	for _, site := range sites {
		if _, dup := reg.sites[site.ID]; dup {
			return nil, fmt.Errorf("duplicate site %q", site.ID)
		}
		if site.OpensAt < 0 || site.OpensAt > 23 || site.ClosesAt < 0 || site.ClosesAt > 23 {
			return nil, fmt.Errorf("site %q hours out of range", site.ID)
		}
		reg.sites[site.ID] = site
		reg.siteOrder = append(reg.siteOrder, site.ID)
	}

	for _, court := range courtList {
		if _, dup := reg.courts[court.ID]; dup {
			return nil, fmt.Errorf("duplicate court %d", court.ID)
		}
		if _, ok := reg.sites[court.Site]; !ok {
			return nil, fmt.Errorf("court %d references unknown site %q", court.ID, court.Site)
		}
		switch court.Capacity.Kind {
		case CapacityFixed:
		case CapacityTiered:
			if len(court.Capacity.Tiers) == 0 {
				return nil, fmt.Errorf("tiered court %d has no tiers", court.ID)
			}
		default:
			return nil, fmt.Errorf("court %d has unknown capacity %q", court.ID, court.Capacity.Kind)
		}
		court.GroupID = ""
		reg.courts[court.ID] = court
		reg.courtOrder = append(reg.courtOrder, court.ID)
	}
	sort.Slice(reg.courtOrder, func(i, j int) bool { return reg.courtOrder[i] < reg.courtOrder[j] })

	for _, group := range groups {
		if len(group.Courts) < 2 {
			return nil, fmt.Errorf("linked group %q needs at least two courts", group.ID)
		}
		if _, dup := reg.groups[group.ID]; dup {
			return nil, fmt.Errorf("duplicate linked group %q", group.ID)
		}
		var site SiteID
		members := make([]CourtID, 0, len(group.Courts))
		for _, id := range group.Courts {
			court, ok := reg.courts[id]
			if !ok {
				return nil, fmt.Errorf("linked group %q references unknown court %d", group.ID, id)
			}
			if existing, taken := reg.courtGroup[id]; taken {
				return nil, fmt.Errorf("court %d is in linked groups %q and %q", id, existing, group.ID)
			}
			if site == "" {
				site = court.Site
			} else if court.Site != site {
				return nil, fmt.Errorf("linked group %q spans sites", group.ID)
			}
			reg.courtGroup[id] = group.ID
			court.GroupID = group.ID
			reg.courts[id] = court
			members = append(members, id)
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		reg.groups[group.ID] = LinkedGroup{ID: group.ID, Courts: members}
	}

	return reg, nil
}

// FromConfig builds the registry from the validated configuration.
func FromConfig(cfg *config.Config) (*Registry, error) {
	sites := make([]Site, 0, len(cfg.Sites))
	for _, s := range cfg.Sites {
		sites = append(sites, Site{
			ID:               SiteID(s.ID),
			Name:             s.Name,
			OpensAt:          s.OpensAt,
			ClosesAt:         s.ClosesAt,
			RefereeSupported: s.RefereeSupported,
			DepositRequired:  s.DepositRequired,
			ChallengeCourt:   CourtID(s.ChallengeCourt),
		})
	}

	courtList := make([]Court, 0, len(cfg.Courts))
	for _, c := range cfg.Courts {
		court := Court{
			ID:   CourtID(c.ID),
			Site: SiteID(c.Site),
			Name: c.Name,
			Capacity: Capacity{
				Kind:    CapacityKind(c.Capacity),
				Players: c.Players,
			},
		}
		if court.Capacity.Kind == CapacityTiered {
			court.Capacity.Tiers = make(map[int]int64, len(c.Tiers))
			for players, price := range c.Tiers {
				court.Capacity.Tiers[players] = price
			}
		} else {
			court.Price = c.Price
		}
		courtList = append(courtList, court)
	}

	groups := make([]LinkedGroup, 0, len(cfg.LinkedGroups))
	for _, g := range cfg.LinkedGroups {
		members := make([]CourtID, 0, len(g.Courts))
		for _, id := range g.Courts {
			members = append(members, CourtID(id))
		}
		groups = append(groups, LinkedGroup{ID: g.ID, Courts: members})
	}

	return NewRegistry(sites, courtList, groups)
}

func (r *Registry) Site(id SiteID) (Site, error) {
	site, ok := r.sites[id]
	if !ok {
		return Site{}, apperr.NotFound("site", id)
	}
	return site, nil
}

func (r *Registry) Sites() []Site {
	out := make([]Site, 0, len(r.siteOrder))
	for _, id := range r.siteOrder {
		out = append(out, r.sites[id])
	}
	return out
}

func (r *Registry) Court(id CourtID) (Court, error) {
	court, ok := r.courts[id]
	if !ok {
		return Court{}, apperr.NotFound("court", id)
	}
	return court, nil
}

func (r *Registry) Courts() []Court {
	out := make([]Court, 0, len(r.courtOrder))
	for _, id := range r.courtOrder {
		out = append(out, r.courts[id])
	}
	return out
}

func (r *Registry) CourtsAtSite(site SiteID) []Court {
	var out []Court
	for _, id := range r.courtOrder {
		if court := r.courts[id]; court.Site == site {
			out = append(out, court)
		}
	}
	return out
}

func (r *Registry) Group(id string) (LinkedGroup, bool) {
	group, ok := r.groups[id]
	return group, ok
}

// EffectiveCourts returns the court plus every member of its linked group,
// sorted ascending. An unknown court yields nil.
func (r *Registry) EffectiveCourts(id CourtID) []CourtID {
	if _, ok := r.courts[id]; !ok {
		return nil
	}
	groupID, grouped := r.courtGroup[id]
	if !grouped {
		return []CourtID{id}
	}
	members := r.groups[groupID].Courts
	out := make([]CourtID, len(members))
	copy(out, members)
	return out
}

func (r *Registry) Schedule(site SiteID) (ScheduleConfig, error) {
	s, err := r.Site(site)
	if err != nil {
		return ScheduleConfig{}, err
	}
	return ScheduleConfig{OpensAt: s.OpensAt, ClosesAt: s.ClosesAt}, nil
}

// SlotKey names the shared slot pool a court draws from on date. Every
// member of a linked group maps to the same key.
func (r *Registry) SlotKey(id CourtID, date clock.Date) (string, error) {
	court, err := r.Court(id)
	if err != nil {
		return "", err
	}
	if court.GroupID != "" {
		return fmt.Sprintf("%s:group-%s:%s", court.Site, court.GroupID, date), nil
	}
	return fmt.Sprintf("%s:court-%d:%s", court.Site, court.ID, date), nil
}
