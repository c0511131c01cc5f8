package dataset

// Sample is the Georgia Tech demo dataset used when a request carries no data.
func Sample() Dataset {
	f := func(v float64) *float64 { return &v }
	return Dataset{
		Buildings: []BuildingRow{
			{BuildingName: "760 SPRING STREET", Demand: f(30), Latitude: f(33.77780591), Longitude: f(-84.38983261)},
			{BuildingName: "CLOUGH UNDERGRADUATE LEARNING COMMONS", Demand: f(758), Latitude: f(33.77543753), Longitude: f(-84.39390424)},
			{BuildingName: "COLLEGE OF COMPUTING", Demand: f(421), Latitude: f(33.77755663), Longitude: f(-84.39758288)},
			{BuildingName: "HOWEY PHYSICS BUILDING", Demand: f(991), Latitude: f(33.77769409), Longitude: f(-84.39847445)},
			{BuildingName: "SCHELLER COLLEGE OF BUSINESS", Demand: f(1232), Latitude: f(33.77665282), Longitude: f(-84.38724716)},
		},
		Sources: []SourceRow{
			{SourceName: "West Village Dorms", Latitude: f(33.779568), Longitude: f(-84.404716), Demand: f(2052)},
			{SourceName: "North Avenue Dorms", Latitude: f(33.77118), Longitude: f(-84.390857), Demand: f(4256)},
			{SourceName: "MARTA Midtown Station", Latitude: f(33.781262), Longitude: f(-84.386494), Demand: f(500)},
		},
		Stops: []StopRow{
			{StopName: "Klaus Building EB", StopLat: f(33.777097), StopLon: f(-84.395484)},
			{StopName: "Clough Commons", StopLat: f(33.775274), StopLon: f(-84.396138)},
			{StopName: "College of Business", StopLat: f(33.77677), StopLon: f(-84.387753)},
			{StopName: "MARTA Midtown Station", StopLat: f(33.78082162), StopLon: f(-84.38640592)},
			{StopName: "Student Center", StopLat: f(33.77342787), StopLon: f(-84.39917304)},
		},
	}
}
