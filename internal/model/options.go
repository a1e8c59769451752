package model

// Config option pairs carry a value together with an Overridable flag.
// Overridable=true means the interface-level default applies unless the
// peer sets the value explicitly.

type StringConfigOption struct {
	Value       string `json:"Value"`
	Overridable bool   `json:"Overridable"`
}

type StringSliceConfigOption struct {
	Value       []string `json:"Value"`
	Overridable bool     `json:"Overridable"`
}

type IntConfigOption struct {
	Value       int  `json:"Value"`
	Overridable bool `json:"Overridable"`
}

type Int32ConfigOption struct {
	Value       int32 `json:"Value"`
	Overridable bool  `json:"Overridable"`
}

func NewStringOption(v string) StringConfigOption {
	return StringConfigOption{Value: v, Overridable: true}
}

func NewStringSliceOption(v []string) StringSliceConfigOption {
	return StringSliceConfigOption{Value: v, Overridable: true}
}

func NewIntOption(v int) IntConfigOption {
	return IntConfigOption{Value: v, Overridable: true}
}

func NewInt32Option(v int32) Int32ConfigOption {
	return Int32ConfigOption{Value: v, Overridable: true}
}
