package sessioncache

import (
	"fmt"
	"strconv"
)

// Redis key schema. Each per exercise map is one hash; the set of
// live exercise ids is one set shared by the whole cluster.
//
//	<prefix>:caches                    set of live exercise ids
//	<prefix>:<id>:submissions          hash login -> Submission json
//	<prefix>:<id>:participations      hash login -> Participation json
//	<prefix>:<id>:batches              hash login -> batch id
//	<prefix>:<id>:results              hash result id -> Result json
//	<prefix>:<id>:start_tasks          json list of task handles
//	<prefix>:lock:<id>                 creation/atomic-write lease
type keySchema struct {
	prefix string
}

func (self keySchema) liveSet() string {
	return self.prefix + ":caches"
}

func (self keySchema) submissions(exercise_id int64) string {
	return fmt.Sprintf("%s:%d:submissions", self.prefix, exercise_id)
}

func (self keySchema) participations(exercise_id int64) string {
	return fmt.Sprintf("%s:%d:participations", self.prefix, exercise_id)
}

func (self keySchema) batches(exercise_id int64) string {
	return fmt.Sprintf("%s:%d:batches", self.prefix, exercise_id)
}

func (self keySchema) results(exercise_id int64) string {
	return fmt.Sprintf("%s:%d:results", self.prefix, exercise_id)
}

func (self keySchema) startTasks(exercise_id int64) string {
	return fmt.Sprintf("%s:%d:start_tasks", self.prefix, exercise_id)
}

func (self keySchema) allForExercise(exercise_id int64) []string {
	return []string{
		self.submissions(exercise_id),
		self.participations(exercise_id),
		self.batches(exercise_id),
		self.results(exercise_id),
		self.startTasks(exercise_id),
	}
}

func parseId(member string) (int64, error) {
	return strconv.ParseInt(member, 10, 64)
}

func formatId(id int64) string {
	return strconv.FormatInt(id, 10)
}
