package main

// Food is an inert ball; touching it converts the ball into score
type Food struct {
	X, Y   float64
	Radius float64
	Color  Color
}

// NewFood spawns a food ball at a random position inside the playable area
func NewFood(cfg Config) *Food {
	return &Food{
		X:      randRange(cfg.EdgePadding+cfg.FoodRadius, cfg.WorldWidth-cfg.EdgePadding-cfg.FoodRadius),
		Y:      randRange(cfg.EdgePadding+cfg.FoodRadius, cfg.WorldHeight-cfg.EdgePadding-cfg.FoodRadius),
		Radius: cfg.FoodRadius,
		Color:  randColor(),
	}
}

// ToState converts to protocol state
func (f *Food) ToState() BallState {
	return BallState{X: f.X, Y: f.Y, Radius: f.Radius, Color: f.Color}
}
