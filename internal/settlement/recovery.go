package settlement

import "math"

// RecoveryCurve maps a landing spot to a recovery factor: full value on the
// launch facilities, then a linear falloff from MaxFactor at the launch site
// to MinFactor at the antipode.
type RecoveryCurve struct {
	MaxFactor       float64
	MinFactor       float64
	FullRefundSites []string
	BodyRadius      float64
	SiteLat         float64
	SiteLon         float64
}

func DefaultRecoveryCurve() RecoveryCurve {
	return RecoveryCurve{
		MaxFactor:       0.98,
		MinFactor:       0.1,
		FullRefundSites: []string{"LaunchPad", "Runway"},
		BodyRadius:      600000,
		SiteLat:         -0.0972,
		SiteLon:         -74.5577,
	}
}

// Factor returns the recovery factor for a vessel that came down at
// (lat, lon), in degrees. site is the named facility it landed on, if any.
func (c RecoveryCurve) Factor(site string, lat, lon float64) float64 {
	for _, s := range c.FullRefundSites {
		if s != "" && s == site {
			return 1
		}
	}
	if c.BodyRadius <= 0 {
		return c.MaxFactor
	}
	d := GreatCircle(c.BodyRadius, c.SiteLat, c.SiteLon, lat, lon)
	t := d / (c.BodyRadius * math.Pi)
	t = math.Max(0, math.Min(1, t))
	return c.MaxFactor + (c.MinFactor-c.MaxFactor)*t
}

// GreatCircle is the haversine distance between two points on a sphere of
// the given radius.
func GreatCircle(radius, lat1, lon1, lat2, lon2 float64) float64 {
	p1, p2 := rad(lat1), rad(lat2)
	dp := p2 - p1
	dl := rad(lon2 - lon1)
	a := math.Sin(dp/2)*math.Sin(dp/2) + math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2)*math.Sin(dl/2)
	a = math.Min(1, a)
	return 2 * radius * math.Asin(math.Sqrt(a))
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }
