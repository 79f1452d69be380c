/*
	Project: Masomo Console
	Target: university ERP admin console (faculty, departments, leaves, fees)
*/
package masomo

/*
TODO: drop the cached pages of a kind once a submission to it succeeds
TODO: GET /v1/:kind/:id to load a record before editing it (forms load from the list for now)

Entities still listed by the browser only:
	- students
	- courses & timetables
	- library loans
*/
