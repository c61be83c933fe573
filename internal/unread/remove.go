package unread

import "sort"

// removeIDs removes the given message IDs from every bucket they appear
// in. When lookup knows a message's conversation the removal touches
// only that bucket; unknown IDs fall back to a scan of all buckets.
// The mention bucket is always checked, since any message can be a
// mention.
func removeIDs(s State, messageIDs []int64, lookup Lookup) State {
	if len(messageIDs) == 0 {
		return s
	}
	ids := ascending(messageIDs)

	out := s
	var unknown []int64

	if lookup == nil {
		unknown = ids
	} else {
		for _, id := range ids {
			ref, ok := lookup.BucketFor(id)
			if !ok || ref.Kind == BucketUnknown {
				unknown = append(unknown, id)
				continue
			}
			out = removeTargeted(out, ref, id)
		}
	}

	if len(unknown) > 0 {
		out = removeByScan(out, unknown)
	}

	if next, changed := removeSorted(out.mentions, ids); changed {
		out.mentions = next
	}
	return out
}

func removeTargeted(s State, ref BucketRef, id int64) State {
	one := []int64{id}
	switch ref.Kind {
	case BucketStreamTopic:
		bucket := s.bucketFor(ref.StreamID, ref.Topic)
		next, changed := removeSorted(bucket, one)
		if !changed {
			return s
		}
		out := s
		out.streams = cloneStreamMap(s.streams)
		perStream := cloneTopicMap(out.streams[ref.StreamID])
		if len(next) == 0 {
			delete(perStream, ref.Topic)
		} else {
			perStream[ref.Topic] = next
		}
		if len(perStream) == 0 {
			delete(out.streams, ref.StreamID)
		} else {
			out.streams[ref.StreamID] = perStream
		}
		return out

	case BucketPm:
		next, changed := removeSorted(s.pms[ref.SenderID], one)
		if !changed {
			return s
		}
		out := s
		out.pms = clonePmMap(s.pms)
		if len(next) == 0 {
			delete(out.pms, ref.SenderID)
		} else {
			out.pms[ref.SenderID] = next
		}
		return out

	case BucketHuddle:
		next, changed := removeSorted(s.huddles[ref.Key], one)
		if !changed {
			return s
		}
		out := s
		out.huddles = cloneHuddleMap(s.huddles)
		if len(next) == 0 {
			delete(out.huddles, ref.Key)
		} else {
			out.huddles[ref.Key] = next
		}
		return out

	default:
		return s
	}
}

func removeByScan(s State, ids []int64) State {
	out := s

	var nextStreams map[int64]map[string][]int64
	for streamID, perStream := range s.streams {
		var nextTopics map[string][]int64
		for topic, bucket := range perStream {
			next, changed := removeSorted(bucket, ids)
			if !changed {
				continue
			}
			if nextStreams == nil {
				nextStreams = cloneStreamMap(s.streams)
				out.streams = nextStreams
			}
			if nextTopics == nil {
				nextTopics = cloneTopicMap(nextStreams[streamID])
				nextStreams[streamID] = nextTopics
			}
			if len(next) == 0 {
				delete(nextTopics, topic)
			} else {
				nextTopics[topic] = next
			}
		}
		if nextTopics != nil && len(nextTopics) == 0 {
			delete(nextStreams, streamID)
		}
	}

	var nextPms map[int64][]int64
	for senderID, bucket := range s.pms {
		next, changed := removeSorted(bucket, ids)
		if !changed {
			continue
		}
		if nextPms == nil {
			nextPms = clonePmMap(s.pms)
			out.pms = nextPms
		}
		if len(next) == 0 {
			delete(nextPms, senderID)
		} else {
			nextPms[senderID] = next
		}
	}

	var nextHuddles map[string][]int64
	for key, bucket := range s.huddles {
		next, changed := removeSorted(bucket, ids)
		if !changed {
			continue
		}
		if nextHuddles == nil {
			nextHuddles = cloneHuddleMap(s.huddles)
			out.huddles = nextHuddles
		}
		if len(next) == 0 {
			delete(nextHuddles, key)
		} else {
			nextHuddles[key] = next
		}
	}

	return out
}

// removeSorted removes ids from bucket, both ascending. Marking-read
// usually targets the oldest unread messages, so a matched prefix is
// consumed in time proportional to the matched count by reslicing;
// only once the prefix match ends does it fall back to a merge-filter
// pass over the remainder. Returns the (possibly shared) new bucket and
// whether anything was removed.
func removeSorted(bucket, ids []int64) ([]int64, bool) {
	if len(bucket) == 0 || len(ids) == 0 {
		return bucket, false
	}

	k := 0
	for k < len(bucket) && k < len(ids) && bucket[k] == ids[k] {
		k++
	}

	rest := bucket[k:]
	rem := ids[k:]

	var buf []int64
	matched := false
	i, j := 0, 0
	for i < len(rest) && j < len(rem) {
		switch {
		case rest[i] == rem[j]:
			if !matched {
				buf = append([]int64(nil), rest[:i]...)
				matched = true
			}
			i++
			j++
		case rest[i] < rem[j]:
			if matched {
				buf = append(buf, rest[i])
			}
			i++
		default:
			j++
		}
	}

	if matched {
		buf = append(buf, rest[i:]...)
		return buf, true
	}
	return rest, k > 0
}

// ascending returns ids sorted ascending and deduplicated. The server
// sends ID lists pre-sorted; the check keeps the prefix optimization in
// removeSorted from silently producing wrong answers if a future event
// source stops guaranteeing that.
func ascending(ids []int64) []int64 {
	sorted := true
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			sorted = false
			break
		}
	}
	if sorted {
		return ids
	}
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}

func containsID(bucket []int64, id int64) bool {
	i := sort.Search(len(bucket), func(i int) bool { return bucket[i] >= id })
	return i < len(bucket) && bucket[i] == id
}

func insertID(bucket []int64, id int64) []int64 {
	i := sort.Search(len(bucket), func(i int) bool { return bucket[i] >= id })
	out := make([]int64, 0, len(bucket)+1)
	out = append(out, bucket[:i]...)
	out = append(out, id)
	out = append(out, bucket[i:]...)
	return out
}

func (s State) bucketFor(streamID int64, topic string) []int64 {
	perStream := s.streams[streamID]
	if perStream == nil {
		return nil
	}
	return perStream[topic]
}

func cloneStreamMap(m map[int64]map[string][]int64) map[int64]map[string][]int64 {
	out := make(map[int64]map[string][]int64, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneTopicMap(m map[string][]int64) map[string][]int64 {
	out := make(map[string][]int64, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clonePmMap(m map[int64][]int64) map[int64][]int64 {
	out := make(map[int64][]int64, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneHuddleMap(m map[string][]int64) map[string][]int64 {
	out := make(map[string][]int64, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
