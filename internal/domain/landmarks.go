package domain

// Landmarks is a face's detected keypoints serialized by the processing
// service as "x1,y1:x2,y2:...". It is opaque to everything but the service
// itself and passed through untouched.
type Landmarks string

// Empty signals "no face detected" and must abort the pending operation.
func (l Landmarks) Empty() bool { return l == "" }
