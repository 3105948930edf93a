package types

// Preset is a suggested vault appearance offered by the client when
// creating a vault.
type Preset struct {
	Icon  string `json:"icon"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Presets is the built-in catalogue, in the order the client renders it.
var Presets = []Preset{
	{Icon: "🏠", Name: "Casa", Color: "#f59e0b"},
	{Icon: "🚗", Name: "Auto", Color: "#3b82f6"},
	{Icon: "✈️", Name: "Vacanze", Color: "#8b5cf6"},
	{Icon: "💍", Name: "Matrimonio", Color: "#ec4899"},
	{Icon: "🎓", Name: "Istruzione", Color: "#10b981"},
	{Icon: "🚑", Name: "Emergenze", Color: "#ef4444"},
	{Icon: "💻", Name: "Tech", Color: "#06b6d4"},
	{Icon: "🏖️", Name: "Mare", Color: "#f97316"},
	{Icon: "🏍️", Name: "Moto", Color: "#84cc16"},
	{Icon: "💰", Name: "Risparmio", Color: "#6366f1"},
}
