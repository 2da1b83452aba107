/*
Package seismic resolves the inline/crossline geometry of SEG-Y volumes and
reads sections from them.

Geometry is resolved by trying a list of strategies in order.  Field
strategies read two trace header fields and accept the file only when the
values tile a complete rectangular grid in trace order; the final full scan
always succeeds but yields a grid that cannot address traces by cell, so
sections and outlines are refused for such volumes.

The Service ties geometry to a storage.MetadataStore: imported volumes are
recorded with their structural metadata, and a survey holding the grid's
coordinate transform is stored alongside when one can be derived.
*/
package seismic

// HelpMessage describes the seismic HTTP API.
const HelpMessage = `
API for seismic volumes
=======================

GET  <api URL>/seismic/segy-headers?file_path=<path>

	Returns the textual header, named binary header fields, the first five trace
	headers and the total trace count of any SEG-Y file.

POST <api URL>/seismic/import

	Registers a SEG-Y file.  Expects JSON:

	{
		"file_path": "/data/survey.sgy",
		"name": "survey",
		"replace": false
	}

	The name defaults to the file name without extension.  A name already in
	use returns 409 unless "replace" is true.  Gridded volumes with readable
	coordinates also get a survey of the same name.

GET  <api URL>/seismic/volumes
GET  <api URL>/seismic/volumes/<id>
DEL  <api URL>/seismic/volumes/<id>

	Lists volumes by name, returns one volume, or forgets one.  Files are never
	modified.

GET  <api URL>/seismic/section?volume_id=<id>&direction=<dir>&index=<line>&downsample=<k>

	Returns one inline or crossline as JSON with data, times (ms), positions
	and the amplitude range.  "direction" is "inline" or "crossline".
	Downsampling keeps every k-th trace and sample without filtering, which
	is only suitable for previews.  A missing line returns 400 with the valid
	range.

GET  <api URL>/seismic/survey-outline?volume_id=<id>

	Returns the four corner coordinates of a gridded volume.

GET  <api URL>/seismic/surveys
POST <api URL>/seismic/surveys/create
POST <api URL>/seismic/surveys/from-volume?volume_id=<id>&survey_name=<name>
DEL  <api URL>/seismic/surveys/<name>

	Lists, creates, derives or deletes surveys.  Creation expects JSON with
	"name", the inline/crossline min, max and step, and origin_x, origin_y,
	inline_dx, inline_dy, crossline_dx, crossline_dy.

GET  <api URL>/seismic/surveys/<name>/locate?inline=<il>&crossline=<xl>
GET  <api URL>/seismic/surveys/<name>/locate?x=<x>&y=<y>

	Converts between line numbers and world coordinates.
`
