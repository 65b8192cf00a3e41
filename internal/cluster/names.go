package cluster

import (
	"fmt"
	"math/rand/v2"
)

var adjectives = []string{
	"accurate", "actual", "angular", "associative", "astronomical", "asymmetrical",
	"available", "beautiful", "biggest", "bimodal", "biochemical", "biological",
	"bright", "celestial", "closest", "colorful", "comparable", "computational",
	"consistent", "conspicuous", "continuous", "conventional", "coolest", "cosmic",
	"cosmological", "critical", "crucial", "cubic", "deeper", "different",
	"difficult", "distant", "dynamical", "early", "easiest", "efficient",
	"electromagnetic", "empirical", "evolutionary", "faster", "favorable", "fewer",
	"fissile", "fissionable", "functional", "galactic", "gaseous", "gaussian",
	"gravitational", "greater", "gregarious", "hard", "heaviest", "hierarchical",
	"highest", "historical", "homogeneous", "hot", "impervious", "important",
	"intelligent", "intense", "intergalactic", "internal", "interstellar", "intrinsic",
	"invisible", "kinetic", "largest", "linear", "magnetic", "mechanical",
	"molecular", "morphological", "naive", "nearest", "nuclear", "obvious",
	"oldest", "optical", "orbital", "outer", "outward", "perceptible",
	"photographic", "photometric", "physical", "planetary", "precise", "proper",
	"random", "reliable", "richest", "robust", "rotational", "scientific",
	"shortest", "significant", "similar", "skeletal", "smallest", "solar",
	"southern", "spectral", "spectroscopic", "spherical", "strong", "subsequent",
	"successful", "sufficient", "systematic", "terrestrial", "thematic", "tidal",
	"tighter", "typical", "uncertain", "uncollected", "unformed", "unlikely",
	"unrelated", "unresolved", "unstable", "unusual",
	"useful", "violent", "visible", "visual", "weak",
}

// Astronomical cluster names.
var clusterNames = []string{
	"antlia", "bullet", "carolines_rose", "centaurus", "chandelier", "coathanger",
	"coma", "double", "el_gordo", "fornax", "globular", "hyades", "hydra",
	"laniakea_super", "m22", "m35", "mayall2", "musket_ball", "ngc752", "norma",
	"omicron_velorum", "pandora", "phoenix", "pleiades", "praesepe", "ptolemy", "pyxis",
	"reticulum", "beehive", "hercules", "wild_duck", "virgo",
}

// GenerateName returns a random adjective_name cluster name.
func GenerateName() string {
	return fmt.Sprintf("%s_%s", adjectives[rand.IntN(len(adjectives))], clusterNames[rand.IntN(len(clusterNames))])
}
