package tracker

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Columns maps the roles the service needs onto column titles in the tracker
// sheet. The defaults match the production tracker; a YAML file can override
// individual titles when the sheet is reorganized.
type Columns struct {
	Check24Hour string `yaml:"check_24_hour"`
	Check1Hour  string `yaml:"check_1_hour"`
	ZipCode     string `yaml:"zip_code"`
	SecuredDate string `yaml:"secured_date"`
	SecuredTime string `yaml:"secured_time"`
	Address     string `yaml:"address"`
	City        string `yaml:"city"`
	State       string `yaml:"state"`
	TechName    string `yaml:"tech_name"`
	TechPhone   string `yaml:"tech_phone"`
	SiteID      string `yaml:"site_id"`
	WorkOrder   string `yaml:"work_order"`
}

// DefaultColumns returns the column titles of the production tracker sheet.
func DefaultColumns() Columns {
	return Columns{
		Check24Hour: "24 hour call",
		Check1Hour:  "1 HR Call",
		ZipCode:     "Zip Code",
		SecuredDate: "Secured Date",
		SecuredTime: "Secured Time",
		Address:     "Address",
		City:        "City",
		State:       "State",
		TechName:    "Tech Name(First and Last)",
		TechPhone:   "Tech Phone #",
		SiteID:      "COMCAST PO",
		WorkOrder:   "WorkMarket #",
	}
}

// LoadColumns reads column overrides from a YAML file. Fields left empty in
// the file keep their defaults. An empty path returns the defaults.
func LoadColumns(path string) (Columns, error) {
	cols := DefaultColumns()
	if path == "" {
		return cols, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cols, fmt.Errorf("reading columns file: %w", err)
	}

	var overrides Columns
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return cols, fmt.Errorf("parsing columns file %s: %w", path, err)
	}

	cols.merge(overrides)
	return cols, nil
}

func (c *Columns) merge(o Columns) {
	apply := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	apply(&c.Check24Hour, o.Check24Hour)
	apply(&c.Check1Hour, o.Check1Hour)
	apply(&c.ZipCode, o.ZipCode)
	apply(&c.SecuredDate, o.SecuredDate)
	apply(&c.SecuredTime, o.SecuredTime)
	apply(&c.Address, o.Address)
	apply(&c.City, o.City)
	apply(&c.State, o.State)
	apply(&c.TechName, o.TechName)
	apply(&c.TechPhone, o.TechPhone)
	apply(&c.SiteID, o.SiteID)
	apply(&c.WorkOrder, o.WorkOrder)
}

// required returns the titles that must exist in the sheet. WorkOrder is
// optional since older trackers predate it.
func (c Columns) required() []string {
	return []string{
		c.Check24Hour,
		c.Check1Hour,
		c.ZipCode,
		c.SecuredDate,
		c.SecuredTime,
		c.Address,
		c.City,
		c.State,
		c.TechName,
		c.TechPhone,
		c.SiteID,
	}
}
