package geocode

// zipEntry is one row of the compiled-in ZIP centroid table.
type zipEntry struct {
	lat   float64
	lng   float64
	city  string
	state string
}

// zipTable maps five-digit US ZIP codes to approximate centroids. Coverage
// is the metro areas the marketplace launched in plus their surrounding
// codes; unknown ZIPs resolve as unmatched, never as errors.
var zipTable = map[string]zipEntry{
	// Colorado Front Range
	"80202": {39.7508, -104.9966, "Denver", "CO"},
	"80203": {39.7312, -104.9826, "Denver", "CO"},
	"80205": {39.7587, -104.9655, "Denver", "CO"},
	"80210": {39.6769, -104.9614, "Denver", "CO"},
	"80211": {39.7665, -105.0202, "Denver", "CO"},
	"80301": {40.0150, -105.2705, "Boulder", "CO"},
	"80302": {40.0176, -105.2797, "Boulder", "CO"},
	"80303": {39.9846, -105.2339, "Boulder", "CO"},
	"80401": {39.7555, -105.2211, "Golden", "CO"},
	"80501": {40.1672, -105.1019, "Longmont", "CO"},
	"80521": {40.5853, -105.0844, "Fort Collins", "CO"},
	"80631": {40.4233, -104.7091, "Greeley", "CO"},
	"80903": {38.8339, -104.8214, "Colorado Springs", "CO"},
	"81001": {38.2544, -104.6091, "Pueblo", "CO"},
	// Front Range foothills / mountain towns
	"80424": {39.4817, -106.0384, "Breckenridge", "CO"},
	"80487": {40.4850, -106.8317, "Steamboat Springs", "CO"},
	"81611": {39.1911, -106.8175, "Aspen", "CO"},
	"81301": {37.2753, -107.8801, "Durango", "CO"},
	// Utah
	"84101": {40.7608, -111.8910, "Salt Lake City", "UT"},
	"84604": {40.2969, -111.6946, "Provo", "UT"},
	"84770": {37.0965, -113.5684, "St. George", "UT"},
	// Arizona
	"85001": {33.4484, -112.0740, "Phoenix", "AZ"},
	"85251": {33.4942, -111.9261, "Scottsdale", "AZ"},
	"85701": {32.2217, -110.9265, "Tucson", "AZ"},
	"86001": {35.1983, -111.6513, "Flagstaff", "AZ"},
	// New Mexico
	"87101": {35.0844, -106.6504, "Albuquerque", "NM"},
	"87501": {35.6870, -105.9378, "Santa Fe", "NM"},
	// Texas
	"73301": {30.2672, -97.7431, "Austin", "TX"},
	"75201": {32.7767, -96.7970, "Dallas", "TX"},
	"76101": {32.7555, -97.3308, "Fort Worth", "TX"},
	"77001": {29.7604, -95.3698, "Houston", "TX"},
	"78201": {29.4241, -98.4936, "San Antonio", "TX"},
	"79901": {31.7587, -106.4869, "El Paso", "TX"},
	// California
	"90001": {33.9731, -118.2479, "Los Angeles", "CA"},
	"90210": {34.0901, -118.4065, "Beverly Hills", "CA"},
	"91101": {34.1478, -118.1445, "Pasadena", "CA"},
	"92101": {32.7157, -117.1611, "San Diego", "CA"},
	"92602": {33.6846, -117.8265, "Irvine", "CA"},
	"93301": {35.3733, -119.0187, "Bakersfield", "CA"},
	"94102": {37.7749, -122.4194, "San Francisco", "CA"},
	"94501": {37.7652, -122.2416, "Alameda", "CA"},
	"94601": {37.8044, -122.2712, "Oakland", "CA"},
	"95101": {37.3382, -121.8863, "San Jose", "CA"},
	"95814": {38.5816, -121.4944, "Sacramento", "CA"},
	"93701": {36.7378, -119.7871, "Fresno", "CA"},
	// Pacific Northwest
	"97201": {45.5152, -122.6784, "Portland", "OR"},
	"97401": {44.0521, -123.0868, "Eugene", "OR"},
	"98101": {47.6062, -122.3321, "Seattle", "WA"},
	"98401": {47.2529, -122.4443, "Tacoma", "WA"},
	"99201": {47.6588, -117.4260, "Spokane", "WA"},
	"83702": {43.6150, -116.2023, "Boise", "ID"},
	// Mountain / Plains
	"59101": {45.7833, -108.5007, "Billings", "MT"},
	"82001": {41.1400, -104.8202, "Cheyenne", "WY"},
	"89101": {36.1699, -115.1398, "Las Vegas", "NV"},
	"89501": {39.5296, -119.8138, "Reno", "NV"},
	"57101": {43.5446, -96.7311, "Sioux Falls", "SD"},
	"58102": {46.8772, -96.7898, "Fargo", "ND"},
	"66101": {39.1141, -94.6275, "Kansas City", "KS"},
	"68101": {41.2565, -95.9345, "Omaha", "NE"},
	"73101": {35.4676, -97.5164, "Oklahoma City", "OK"},
	// Midwest
	"60601": {41.8781, -87.6298, "Chicago", "IL"},
	"60614": {41.9227, -87.6533, "Chicago", "IL"},
	"48201": {42.3314, -83.0458, "Detroit", "MI"},
	"43201": {39.9612, -82.9988, "Columbus", "OH"},
	"44101": {41.4993, -81.6944, "Cleveland", "OH"},
	"45201": {39.1031, -84.5120, "Cincinnati", "OH"},
	"46201": {39.7684, -86.1581, "Indianapolis", "IN"},
	"53201": {43.0389, -87.9065, "Milwaukee", "WI"},
	"55401": {44.9778, -93.2650, "Minneapolis", "MN"},
	"63101": {38.6270, -90.1994, "St. Louis", "MO"},
	"64101": {39.0997, -94.5786, "Kansas City", "MO"},
	"50301": {41.5868, -93.6250, "Des Moines", "IA"},
	// South
	"30301": {33.7490, -84.3880, "Atlanta", "GA"},
	"32801": {28.5383, -81.3792, "Orlando", "FL"},
	"33101": {25.7617, -80.1918, "Miami", "FL"},
	"33601": {27.9506, -82.4572, "Tampa", "FL"},
	"32201": {30.3322, -81.6557, "Jacksonville", "FL"},
	"35201": {33.5186, -86.8104, "Birmingham", "AL"},
	"37201": {36.1627, -86.7816, "Nashville", "TN"},
	"38101": {35.1495, -90.0490, "Memphis", "TN"},
	"40201": {38.2527, -85.7585, "Louisville", "KY"},
	"70112": {29.9511, -90.0715, "New Orleans", "LA"},
	"72201": {34.7465, -92.2896, "Little Rock", "AR"},
	"28201": {35.2271, -80.8431, "Charlotte", "NC"},
	"27601": {35.7796, -78.6382, "Raleigh", "NC"},
	"29401": {32.7765, -79.9311, "Charleston", "SC"},
	"23218": {37.5407, -77.4360, "Richmond", "VA"},
	// Northeast
	"10001": {40.7506, -73.9972, "New York", "NY"},
	"10013": {40.7200, -74.0050, "New York", "NY"},
	"11201": {40.6943, -73.9903, "Brooklyn", "NY"},
	"14201": {42.8864, -78.8784, "Buffalo", "NY"},
	"02101": {42.3601, -71.0589, "Boston", "MA"},
	"02903": {41.8240, -71.4128, "Providence", "RI"},
	"06101": {41.7658, -72.6734, "Hartford", "CT"},
	"07101": {40.7357, -74.1724, "Newark", "NJ"},
	"19101": {39.9526, -75.1652, "Philadelphia", "PA"},
	"15201": {40.4406, -79.9959, "Pittsburgh", "PA"},
	"21201": {39.2904, -76.6122, "Baltimore", "MD"},
	"20001": {38.9072, -77.0369, "Washington", "DC"},
}
